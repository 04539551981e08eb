// Package system composes the configuration registry, the bundle table and
// the dashboard and network collaborators into one lock-guarded state.
//
// All access goes through (*System).Do, which holds a single mutex for the
// duration of the callback. The callback must not call Do or Init again.
package system

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Lorinet/Hypefuse/lib/bundle"
	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/dashboard"
	"github.com/Lorinet/Hypefuse/lib/network"
	"github.com/Lorinet/Hypefuse/lib/util"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/samber/oops"
)

var log = logger.GetHypefuseLogger()

// State is the data guarded by System. It is only valid inside Do.
type State struct {
	Registry  *configuration.Registry
	Bundles   *bundle.Manager
	Dashboard *dashboard.Dashboard
	Network   *network.Manager

	reloadSensitive []string
}

// Reload rebuilds everything from disk: the registry is cleared and every
// <root>/<scope>/config directory is loaded, then the collaborators are
// reinitialized from the new registry.
func (st *State) Reload() error {
	root := st.Registry.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		return oops.Wrapf(err, "cannot scan data root %s", root)
	}

	st.Registry.Init()
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		dir := filepath.Join(root, e.Name(), configuration.ConfigDir)
		if !util.IsDir(dir) {
			continue
		}
		if err := st.Registry.LoadAll(dir); err != nil {
			log.WithFields(logger.Fields{
				"at":    "(State).Reload",
				"scope": e.Name(),
			}).WithError(err).Error("error_loading_scope")
		}
	}

	st.Bundles.Init(st.Registry)
	st.Dashboard.Init(st.Registry)
	st.Network.Init(st.Registry)

	log.WithFields(logger.Fields{
		"at":      "(State).Reload",
		"bases":   st.Registry.Len(),
		"bundles": st.Bundles.Len(),
	}).Info("system_initialized")
	return nil
}

// IsReloadSensitive reports whether changes to scope require a Reload.
func (st *State) IsReloadSensitive(scope string) bool {
	return slices.Contains(st.reloadSensitive, scope)
}

// AfterChange reloads when scope is reload sensitive. A change to the wifi
// scope also schedules network reprovisioning.
func (st *State) AfterChange(scope string) error {
	if !st.IsReloadSensitive(scope) {
		return nil
	}
	if scope == network.WifiScope {
		st.Network.RequestReconnect()
	}
	return st.Reload()
}

// System serializes all access to State.
type System struct {
	mu    sync.Mutex
	state *State
}

// New builds an uninitialized system. Call Init before serving.
func New(cfg config.HypefuseConfig, runner network.Runner) *System {
	return &System{
		state: &State{
			Registry:        configuration.NewRegistry(cfg.Data.Root),
			Bundles:         bundle.NewManager(),
			Dashboard:       dashboard.New(cfg.Dashboard),
			Network:         network.NewManager(cfg.Network, runner),
			reloadSensitive: slices.Clone(cfg.Data.ReloadSensitive),
		},
	}
}

// Do runs fn with exclusive access to the state. A panic in fn still
// releases the lock.
func (s *System) Do(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Init reloads the state from disk. It is safe to call repeatedly.
func (s *System) Init() error {
	return s.Do(func(st *State) error { return st.Reload() })
}

// Wait blocks until background work started by the collaborators is done.
func (s *System) Wait() {
	s.state.Network.Wait()
}
