package config

import (
	"time"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

const (
	TextPolicyReplace = "replace"
	TextPolicyReject  = "reject"
)

// HypefuseConfig is the complete process configuration.
type HypefuseConfig struct {
	Server    ServerConfig
	Data      DataConfig
	Network   NetworkConfig
	Dashboard DashboardConfig
	Watch     WatchConfig
}

// ServerConfig controls the TCP listener, worker pool and response writer.
type ServerConfig struct {
	// Address is the listen address
	// Default: 0.0.0.0:1337
	Address string

	// Workers is the fixed size of the worker pool
	// Default: 4
	Workers int

	// QueueDepth bounds the pending connection queue. Zero means unbounded.
	// When bounded, the acceptor blocks while the queue is full.
	// Default: 0
	QueueDepth int

	// ReadTimeout limits how long a worker waits for a request. Zero disables it.
	// Default: 0
	ReadTimeout time.Duration

	// StatusMapping writes 400/404/500 per error kind. When false every
	// failure is answered with 500.
	// Default: true
	StatusMapping bool

	// ErrorTraces appends the error stack to error response bodies
	// Default: true
	ErrorTraces bool

	// TextPolicy is applied to text responses with invalid UTF-8.
	// Valid values: "replace", "reject"
	// Default: "replace"
	TextPolicy string

	// IndexFile is served for /bundle/<uuid>/ with no file path
	// Default: app/index.html
	IndexFile string

	// RedirectTarget is where / redirects to
	// Default: /bundle/settings
	RedirectTarget string
}

// DataConfig locates the scope directories.
type DataConfig struct {
	// Root holds one directory per scope (<root>/<scope>/config/<base>)
	// Default: data
	Root string

	// ReloadSensitive lists scopes whose changes trigger a system reload
	// Default: [widgets, wifi]
	ReloadSensitive []string
}

// NetworkConfig controls Wi-Fi provisioning.
type NetworkConfig struct {
	// Enabled turns provisioning on. Disabled on development machines.
	// Default: true
	Enabled bool

	HotspotSSID     string
	HotspotPassword string

	// AvahiService is the runit service restarted after provisioning
	// Default: avahi-daemon
	AvahiService string

	// CommandTimeout bounds each external command
	// Default: 2 minutes
	CommandTimeout time.Duration
}

// DashboardConfig holds fallbacks used when the system/dashboard base is
// missing or incomplete.
type DashboardConfig struct {
	ScreenWidth  int
	ScreenHeight int

	// PollInterval is how often the rendered page asks whether to reload
	// Default: 10 seconds
	PollInterval time.Duration
}

// WatchConfig controls hot reload on external changes to the data root.
type WatchConfig struct {
	// Default: false
	Enabled bool

	// MinInterval is the minimum time between two reloads
	// Default: 2 seconds
	MinInterval time.Duration
}

// Defaults returns the documented default configuration.
func Defaults() HypefuseConfig {
	return HypefuseConfig{
		Server: ServerConfig{
			Address:        "0.0.0.0:1337",
			Workers:        4,
			QueueDepth:     0,
			ReadTimeout:    0,
			StatusMapping:  true,
			ErrorTraces:    true,
			TextPolicy:     TextPolicyReplace,
			IndexFile:      "app/index.html",
			RedirectTarget: "/bundle/settings",
		},
		Data: DataConfig{
			Root:            "data",
			ReloadSensitive: []string{"widgets", "wifi"},
		},
		Network: NetworkConfig{
			Enabled:         true,
			HotspotSSID:     "LinfinitySmartMirror",
			HotspotPassword: "hypefuse",
			AvahiService:    "avahi-daemon",
			CommandTimeout:  2 * time.Minute,
		},
		Dashboard: DashboardConfig{
			ScreenWidth:  1080,
			ScreenHeight: 1920,
			PollInterval: 10 * time.Second,
		},
		Watch: WatchConfig{
			Enabled:     false,
			MinInterval: 2 * time.Second,
		},
	}
}

// Validate checks cfg for values the server cannot run with.
func Validate(cfg HypefuseConfig) error {
	for _, check := range []func(HypefuseConfig) error{
		validateServer,
		validateData,
		validateDashboard,
		validateWatch,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateServer(cfg HypefuseConfig) error {
	s := cfg.Server
	if s.Address == "" {
		return invalid("server", "address_empty", "Server.Address must not be empty")
	}
	if s.Workers < 1 {
		return invalid("server", "workers_too_low", "Server.Workers must be at least 1")
	}
	if s.QueueDepth < 0 {
		return invalid("server", "queue_depth_negative", "Server.QueueDepth must not be negative")
	}
	if s.ReadTimeout < 0 {
		return invalid("server", "read_timeout_negative", "Server.ReadTimeout must not be negative")
	}
	if s.TextPolicy != TextPolicyReplace && s.TextPolicy != TextPolicyReject {
		return invalid("server", "unknown_text_policy",
			"Server.TextPolicy must be \""+TextPolicyReplace+"\" or \""+TextPolicyReject+"\"")
	}
	if s.IndexFile == "" {
		return invalid("server", "index_file_empty", "Server.IndexFile must not be empty")
	}
	return nil
}

func validateData(cfg HypefuseConfig) error {
	if cfg.Data.Root == "" {
		return invalid("data", "root_empty", "Data.Root must not be empty")
	}
	return nil
}

func validateDashboard(cfg HypefuseConfig) error {
	d := cfg.Dashboard
	if d.ScreenWidth < 1 || d.ScreenHeight < 1 {
		return invalid("dashboard", "screen_size_too_small", "Dashboard screen size must be positive")
	}
	if d.PollInterval < time.Second {
		return invalid("dashboard", "poll_interval_too_low", "Dashboard.PollInterval must be at least 1 second")
	}
	return nil
}

func validateWatch(cfg HypefuseConfig) error {
	if cfg.Watch.Enabled && cfg.Watch.MinInterval <= 0 {
		return invalid("watch", "min_interval_not_positive", "Watch.MinInterval must be positive")
	}
	return nil
}

func invalid(section, reason, message string) error {
	log.WithFields(logger.Fields{
		"at":      "config.Validate",
		"section": section,
		"reason":  reason,
	}).Error("invalid configuration")
	return newValidationError(message)
}

// validationError is returned when configuration validation fails
type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}
