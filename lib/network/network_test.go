package network

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu       sync.Mutex
	commands []string
	failOn   string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd := strings.Join(append([]string{name}, args...), " ")
	r.commands = append(r.commands, cmd)
	if r.failOn != "" && strings.Contains(cmd, r.failOn) {
		return errors.New("command failed")
	}
	return nil
}

func (r *recordingRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func testConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Enabled:         true,
		HotspotSSID:     "Mirror",
		HotspotPassword: "hypefuse",
		AvahiService:    "avahi-daemon",
		CommandTimeout:  time.Second,
	}
}

func wifiRegistry(t *testing.T) *configuration.Registry {
	t.Helper()
	root := t.TempDir()
	write := func(base, body string) {
		p := filepath.Join(root, WifiScope, configuration.ConfigDir, base)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("home", "name = \"Home\"\npassword = \"secret\"\n")
	write("office", "name = \"Office\"\npassword = \"hunter2\"\n")
	write("broken", "name = \"NoPassword\"\n")
	reg := configuration.NewRegistry(root)
	require.NoError(t, reg.LoadAll(root))
	return reg
}

func TestInitProvisionsInOrder(t *testing.T) {
	runner := &recordingRunner{failOn: "Home"}
	m := NewManager(testConfig(), runner)
	require.True(t, m.ReconnectRequested())

	m.Init(wifiRegistry(t))
	m.Wait()

	assert.Equal(t, []Credential{{"Home", "secret"}, {"Office", "hunter2"}}, m.Credentials())
	assert.Equal(t, []string{
		"nmcli device wifi connect Home password secret",
		"nmcli device wifi connect Office password hunter2",
		"nmcli device wifi hotspot ssid Mirror password hypefuse",
		"sv restart avahi-daemon",
	}, runner.Commands(), "a failing network does not stop the others")
	assert.False(t, m.ReconnectRequested())
}

func TestInitSkipsWithoutReconnectRequest(t *testing.T) {
	runner := &recordingRunner{}
	m := NewManager(testConfig(), runner)
	reg := wifiRegistry(t)

	m.Init(reg)
	m.Wait()
	first := len(runner.Commands())

	m.Init(reg)
	m.Wait()
	assert.Len(t, runner.Commands(), first)

	m.RequestReconnect()
	m.Init(reg)
	m.Wait()
	assert.Len(t, runner.Commands(), 2*first)
}

func TestInitDisabledCollectsOnly(t *testing.T) {
	runner := &recordingRunner{}
	cfg := testConfig()
	cfg.Enabled = false
	m := NewManager(cfg, runner)

	m.Init(wifiRegistry(t))
	m.Wait()
	assert.Len(t, m.Credentials(), 2)
	assert.Empty(t, runner.Commands())
}
