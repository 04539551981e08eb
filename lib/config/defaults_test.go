package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "0.0.0.0:1337", cfg.Server.Address)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Zero(t, cfg.Server.QueueDepth, "queue is unbounded by default")
	assert.True(t, cfg.Server.StatusMapping)
	assert.Equal(t, TextPolicyReplace, cfg.Server.TextPolicy)
	assert.Equal(t, "app/index.html", cfg.Server.IndexFile)
	assert.Equal(t, "/bundle/settings", cfg.Server.RedirectTarget)
	assert.Equal(t, []string{"widgets", "wifi"}, cfg.Data.ReloadSensitive)
	assert.Equal(t, 10*time.Second, cfg.Dashboard.PollInterval)
	assert.False(t, cfg.Watch.Enabled)

	require.NoError(t, Validate(cfg))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HypefuseConfig)
	}{
		{"empty address", func(c *HypefuseConfig) { c.Server.Address = "" }},
		{"zero workers", func(c *HypefuseConfig) { c.Server.Workers = 0 }},
		{"negative queue", func(c *HypefuseConfig) { c.Server.QueueDepth = -1 }},
		{"negative read timeout", func(c *HypefuseConfig) { c.Server.ReadTimeout = -time.Second }},
		{"unknown text policy", func(c *HypefuseConfig) { c.Server.TextPolicy = "ignore" }},
		{"empty index file", func(c *HypefuseConfig) { c.Server.IndexFile = "" }},
		{"empty data root", func(c *HypefuseConfig) { c.Data.Root = "" }},
		{"zero screen", func(c *HypefuseConfig) { c.Dashboard.ScreenWidth = 0 }},
		{"fast poll", func(c *HypefuseConfig) { c.Dashboard.PollInterval = time.Millisecond }},
		{"watch without interval", func(c *HypefuseConfig) {
			c.Watch.Enabled = true
			c.Watch.MinInterval = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestValidateAcceptsBoundedQueue(t *testing.T) {
	cfg := Defaults()
	cfg.Server.QueueDepth = 16
	cfg.Server.TextPolicy = TextPolicyReject
	assert.NoError(t, Validate(cfg))
}
