// Package network provisions Wi-Fi from the credentials stored in the wifi
// scope. Provisioning runs in the background and never reports back to the
// caller; failures are only logged.
package network

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/samber/oops"
)

var log = logger.GetHypefuseLogger()

// WifiScope holds one base per known network.
const WifiScope = "wifi"

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	log.WithFields(logger.Fields{
		"at":      "ExecRunner.Run",
		"command": name,
		"output":  strings.TrimSpace(string(out)),
	}).Debug("command_finished")
	if err != nil {
		return oops.Wrapf(err, "%s %s", name, strings.Join(args, " "))
	}
	return nil
}

type Credential struct {
	Name     string
	Password string
}

type Manager struct {
	cfg         config.NetworkConfig
	runner      Runner
	reconnect   bool
	credentials []Credential
	wg          sync.WaitGroup
}

// NewManager returns a manager that connects on its first Init.
func NewManager(cfg config.NetworkConfig, runner Runner) *Manager {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Manager{cfg: cfg, runner: runner, reconnect: true}
}

// RequestReconnect makes the next Init reprovision the network.
func (m *Manager) RequestReconnect() { m.reconnect = true }

func (m *Manager) ReconnectRequested() bool { return m.reconnect }

// Credentials returns the networks collected by the last provisioning Init.
func (m *Manager) Credentials() []Credential {
	out := make([]Credential, len(m.credentials))
	copy(out, m.credentials)
	return out
}

// Init collects credentials and starts provisioning when a reconnect is
// pending. It returns without waiting for the commands.
func (m *Manager) Init(reg *configuration.Registry) {
	if !m.reconnect {
		log.WithField("at", "(Manager).Init").Debug("network_already_initialized")
		return
	}
	m.credentials = nil
	for _, base := range reg.BasesOfBundle(WifiScope) {
		if err := configuration.WifiSchema.Validate(base); err != nil {
			log.WithFields(logger.Fields{
				"at":   "(Manager).Init",
				"path": base.Path(),
			}).WithError(err).Error("invalid_network_configuration")
			continue
		}
		name, _ := base.GetString("name")
		password, _ := base.GetString("password")
		m.credentials = append(m.credentials, Credential{Name: name, Password: password})
	}
	m.reconnect = false

	if !m.cfg.Enabled {
		log.WithFields(logger.Fields{
			"at":       "(Manager).Init",
			"networks": len(m.credentials),
		}).Info("network_provisioning_disabled")
		return
	}
	creds := m.Credentials()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.connectAll(creds)
	}()
}

// Wait blocks until background provisioning started by Init has finished.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) connectAll(creds []Credential) {
	for _, c := range creds {
		log.WithFields(logger.Fields{"at": "(Manager).connectAll", "ssid": c.Name}).Info("connecting_to_network")
		if err := m.run("nmcli", "device", "wifi", "connect", c.Name, "password", c.Password); err != nil {
			log.WithFields(logger.Fields{"at": "(Manager).connectAll", "ssid": c.Name}).
				WithError(err).Error("network_connection_error")
		}
	}
	log.WithField("at", "(Manager).connectAll").Info("activating_hotspot_as_last_resort")
	if err := m.run("nmcli", "device", "wifi", "hotspot",
		"ssid", m.cfg.HotspotSSID, "password", m.cfg.HotspotPassword); err != nil {
		log.WithField("at", "(Manager).connectAll").WithError(err).Error("could_not_activate_hotspot")
	}
	if m.cfg.AvahiService == "" {
		return
	}
	if err := m.run("sv", "restart", m.cfg.AvahiService); err != nil {
		log.WithField("at", "(Manager).connectAll").WithError(err).Error("avahi_restart_error")
	}
}

func (m *Manager) run(name string, args ...string) error {
	ctx := context.Background()
	if m.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CommandTimeout)
		defer cancel()
	}
	start := time.Now()
	err := m.runner.Run(ctx, name, args...)
	log.WithFields(logger.Fields{
		"at":       "(Manager).run",
		"command":  name,
		"duration": time.Since(start).String(),
	}).Debug("network_command_done")
	return err
}
