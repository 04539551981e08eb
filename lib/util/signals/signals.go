// Package signals turns process signals into reload and shutdown callbacks.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

var log = logger.GetHypefuseLogger()

// DefaultShutdownTimeout bounds how long Run waits for shutdown handlers.
const DefaultShutdownTimeout = 30 * time.Second

// Handler is called when a signal is received.
type Handler func()

type action int

const (
	actionIgnore action = iota
	actionReload
	actionShutdown
)

// Dispatcher runs registered handlers when the process is signalled.
type Dispatcher struct {
	mu       sync.Mutex
	reload   []Handler
	shutdown []Handler
	timeout  time.Duration

	ch       chan os.Signal
	stopOnce sync.Once
}

// New creates a dispatcher. A non-positive timeout selects
// DefaultShutdownTimeout.
func New(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Dispatcher{
		timeout: timeout,
		ch:      make(chan os.Signal, 1),
	}
}

// OnReload registers h for reload signals. Nil handlers are ignored.
func (d *Dispatcher) OnReload(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reload = append(d.reload, h)
}

// OnShutdown registers h for shutdown signals. Handlers run in registration
// order. Nil handlers are ignored.
func (d *Dispatcher) OnShutdown(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = append(d.shutdown, h)
}

// Start subscribes to the platform's reload and shutdown signals.
func (d *Dispatcher) Start() {
	notify(d.ch)
}

// Run dispatches signals until a shutdown signal has been handled or Stop is
// called. It returns the shutdown signal, or nil after Stop.
func (d *Dispatcher) Run() os.Signal {
	for sig := range d.ch {
		switch classify(sig) {
		case actionReload:
			log.WithFields(logger.Fields{
				"at":     "(Dispatcher).Run",
				"signal": sig.String(),
			}).Info("reload_requested")
			d.runAll("reload", d.snapshot(&d.reload))
		case actionShutdown:
			log.WithFields(logger.Fields{
				"at":     "(Dispatcher).Run",
				"signal": sig.String(),
			}).Info("shutdown_requested")
			d.runShutdown()
			return sig
		}
	}
	return nil
}

// Stop unsubscribes from signals and makes Run return. Safe to call more
// than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		signal.Stop(d.ch)
		close(d.ch)
	})
}

func (d *Dispatcher) snapshot(handlers *[]Handler) []Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Handler(nil), (*handlers)...)
}

// runShutdown runs the shutdown handlers, giving up after the timeout.
// Reports whether every handler finished in time.
func (d *Dispatcher) runShutdown() bool {
	handlers := d.snapshot(&d.shutdown)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.runAll("shutdown", handlers)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d.timeout):
		log.WithFields(logger.Fields{
			"at":      "(Dispatcher).runShutdown",
			"timeout": d.timeout.String(),
		}).Warn("shutdown_handlers_timed_out")
		return false
	}
}

func (d *Dispatcher) runAll(kind string, handlers []Handler) {
	for i, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":      "(Dispatcher).runAll",
						"kind":    kind,
						"handler": i,
						"panic":   r,
					}).Error("panic_in_signal_handler")
				}
			}()
			h()
		}()
	}
}
