// Package watcher reloads the system when configuration files change on disk
// behind the server's back, for example when a bundle is copied onto the
// device.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/util"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
	"golang.org/x/time/rate"
)

var log = logger.GetHypefuseLogger()

// ReloadFunc is invoked after a burst of changes.
type ReloadFunc func() error

// Watcher coalesces filesystem events under a data root into rate limited
// reloads.
type Watcher struct {
	root    string
	reload  ReloadFunc
	limiter *rate.Limiter
	fsw     *fsnotify.Watcher
	pending chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	watched map[string]struct{}
}

// New creates a watcher on root. At most one reload runs per minInterval.
func New(root string, minInterval time.Duration, reload ReloadFunc) (*Watcher, error) {
	if minInterval <= 0 {
		return nil, oops.Errorf("watch interval must be positive, got %s", minInterval)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create filesystem watcher")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		root:    filepath.Clean(root),
		reload:  reload,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		fsw:     fsw,
		pending: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]struct{}),
	}, nil
}

// Start watches root and every existing scope config directory.
func (w *Watcher) Start() error {
	if err := w.add(w.root); err != nil {
		return err
	}
	w.syncScopes()

	w.wg.Add(2)
	go w.eventLoop()
	go w.reloadLoop()

	log.WithFields(logger.Fields{
		"at":   "(Watcher).Start",
		"root": w.root,
	}).Info("watcher_started")
	return nil
}

// Close stops watching and waits for a reload in progress to finish.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	log.WithField("at", "(Watcher).Close").Info("watcher_stopped")
	return err
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return oops.Wrapf(err, "failed to watch %s", dir)
	}
	w.watched[dir] = struct{}{}
	return nil
}

// syncScopes adds watches for scope directories created since the last call.
func (w *Watcher) syncScopes() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		log.WithField("at", "(Watcher).syncScopes").WithError(err).Warn("cannot_scan_data_root")
		return
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		for _, dir := range []string{
			filepath.Join(w.root, e.Name()),
			filepath.Join(w.root, e.Name(), configuration.ConfigDir),
		} {
			if !util.IsDir(dir) {
				continue
			}
			if err := w.add(dir); err != nil {
				log.WithField("at", "(Watcher).syncScopes").WithError(err).Warn("cannot_watch_directory")
			}
		}
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.syncScopes()
			}
			select {
			case w.pending <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithField("at", "(Watcher).eventLoop").WithError(err).Warn("watch_error")
		}
	}
}

// relevant filters out hidden files, which include commit temporaries, and
// pure permission changes.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return !(ev.Op == fsnotify.Chmod)
}

func (w *Watcher) reloadLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.pending:
		}
		if err := w.limiter.Wait(w.ctx); err != nil {
			if errors.Is(err, context.Canceled) || w.ctx.Err() != nil {
				return
			}
			log.WithField("at", "(Watcher).reloadLoop").WithError(err).Warn("rate_limiter_error")
			continue
		}
		// Drain events that arrived while throttled; this reload covers them.
		select {
		case <-w.pending:
		default:
		}
		if err := w.reload(); err != nil {
			log.WithField("at", "(Watcher).reloadLoop").WithError(err).Error("reload_failed")
			continue
		}
		log.WithField("at", "(Watcher).reloadLoop").Debug("reloaded_after_change")
	}
}
