package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lorinet/Hypefuse/lib/util"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetHypefuseLogger()
)

const HYPEFUSE_BASE_DIR = ".hypefuse"

// InitConfig wires viper to the config file, environment and defaults.
func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildHypefuseDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HYPEFUSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// handle config file creating it if needed
	handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("server.address", d.Server.Address)
	viper.SetDefault("server.workers", d.Server.Workers)
	viper.SetDefault("server.queue_depth", d.Server.QueueDepth)
	viper.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	viper.SetDefault("server.status_mapping", d.Server.StatusMapping)
	viper.SetDefault("server.error_traces", d.Server.ErrorTraces)
	viper.SetDefault("server.text_policy", d.Server.TextPolicy)
	viper.SetDefault("server.index_file", d.Server.IndexFile)
	viper.SetDefault("server.redirect_target", d.Server.RedirectTarget)

	viper.SetDefault("data.root", d.Data.Root)
	viper.SetDefault("data.reload_sensitive", d.Data.ReloadSensitive)

	viper.SetDefault("network.enabled", d.Network.Enabled)
	viper.SetDefault("network.hotspot_ssid", d.Network.HotspotSSID)
	viper.SetDefault("network.hotspot_password", d.Network.HotspotPassword)
	viper.SetDefault("network.avahi_service", d.Network.AvahiService)
	viper.SetDefault("network.command_timeout", d.Network.CommandTimeout)

	viper.SetDefault("dashboard.screen_width", d.Dashboard.ScreenWidth)
	viper.SetDefault("dashboard.screen_height", d.Dashboard.ScreenHeight)
	viper.SetDefault("dashboard.poll_interval", d.Dashboard.PollInterval)

	viper.SetDefault("watch.enabled", d.Watch.Enabled)
	viper.SetDefault("watch.min_interval", d.Watch.MinInterval)
}

// NewConfigFromViper builds a HypefuseConfig from the current viper settings.
func NewConfigFromViper() HypefuseConfig {
	return HypefuseConfig{
		Server: ServerConfig{
			Address:        viper.GetString("server.address"),
			Workers:        viper.GetInt("server.workers"),
			QueueDepth:     viper.GetInt("server.queue_depth"),
			ReadTimeout:    viper.GetDuration("server.read_timeout"),
			StatusMapping:  viper.GetBool("server.status_mapping"),
			ErrorTraces:    viper.GetBool("server.error_traces"),
			TextPolicy:     strings.ToLower(viper.GetString("server.text_policy")),
			IndexFile:      viper.GetString("server.index_file"),
			RedirectTarget: viper.GetString("server.redirect_target"),
		},
		Data: DataConfig{
			Root:            viper.GetString("data.root"),
			ReloadSensitive: viper.GetStringSlice("data.reload_sensitive"),
		},
		Network: NetworkConfig{
			Enabled:         viper.GetBool("network.enabled"),
			HotspotSSID:     viper.GetString("network.hotspot_ssid"),
			HotspotPassword: viper.GetString("network.hotspot_password"),
			AvahiService:    viper.GetString("network.avahi_service"),
			CommandTimeout:  viper.GetDuration("network.command_timeout"),
		},
		Dashboard: DashboardConfig{
			ScreenWidth:  viper.GetInt("dashboard.screen_width"),
			ScreenHeight: viper.GetInt("dashboard.screen_height"),
			PollInterval: viper.GetDuration("dashboard.poll_interval"),
		},
		Watch: WatchConfig{
			Enabled:     viper.GetBool("watch.enabled"),
			MinInterval: viper.GetDuration("watch.min_interval"),
		},
	}
}

func createDefaultConfig(defaultConfigDir string) {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		log.Fatalf("Could not create config directory: %s", err)
	}

	if err := viper.SafeWriteConfigAs(defaultConfigFile); err != nil {
		log.Fatalf("Could not write default config file: %s", err)
	}

	log.WithField("path", defaultConfigFile).Debug("default_config_created")
}

func handleConfigFile() {
	err := viper.ReadInConfig()
	if err == nil {
		log.WithField("path", viper.ConfigFileUsed()).Debug("using_config_file")
		return
	}
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		createDefaultConfig(BuildHypefuseDirPath())
	case CfgFile != "" && errors.Is(err, os.ErrNotExist):
		log.Fatalf("Config file %s is not found: %s", CfgFile, err)
	default:
		log.Fatalf("Error reading config file: %s", err)
	}
}

// BuildHypefuseDirPath returns $HOME/.hypefuse.
func BuildHypefuseDirPath() string {
	return filepath.Join(util.UserHome(), HYPEFUSE_BASE_DIR)
}
