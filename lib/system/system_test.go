package system

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct{ calls atomic.Int32 }

func (r *countingRunner) Run(context.Context, string, ...string) error {
	r.calls.Add(1)
	return nil
}

func writeBase(t *testing.T, root, scope, base, body string) {
	t.Helper()
	p := filepath.Join(root, scope, configuration.ConfigDir, base)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func newSystem(t *testing.T) (*System, string, *countingRunner) {
	t.Helper()
	root := t.TempDir()
	writeBase(t, root, "settings", configuration.ManifestBase, "uuid = \"settings\"\nfolders = [\"app\"]\n")
	writeBase(t, root, "settings", "general", "name = \"mirror\"\n")
	writeBase(t, root, "system", "dashboard", "screen_width = 1000\nscreen_height = 500\n")
	writeBase(t, root, "widgets", "clock", "uuid = \"settings\"\nposition_x = 0\nposition_y = 0\nwidth = 100\nheight = 100\n")
	writeBase(t, root, "wifi", "home", "name = \"Home\"\npassword = \"pw\"\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "settings", "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "settings", "app", "index.html"), []byte("<p>hi</p>"), 0o644))

	cfg := config.Defaults()
	cfg.Data.Root = root
	runner := &countingRunner{}
	sys := New(cfg, runner)
	t.Cleanup(sys.Wait)
	return sys, root, runner
}

func snapshot(t *testing.T, sys *System) string {
	t.Helper()
	var out string
	require.NoError(t, sys.Do(func(st *State) error {
		data, err := st.Registry.JSON()
		out = string(data)
		return err
	}))
	return out
}

func TestInitLoadsOnlyConfigDirectories(t *testing.T) {
	sys, root, _ := newSystem(t)
	require.NoError(t, sys.Init())

	require.NoError(t, sys.Do(func(st *State) error {
		assert.Equal(t, 5, st.Registry.Len(), "bundle files are not loaded as bases")
		_, ok := st.Bundles.Get("settings")
		assert.True(t, ok)
		assert.Len(t, st.Dashboard.Widgets(), 1)
		assert.True(t, st.Dashboard.ReloadRequested())
		_, ok = st.Registry.Base(filepath.Join(root, "settings", "config", "general"))
		assert.True(t, ok)
		return nil
	}))
}

func TestInitIsDeterministic(t *testing.T) {
	sys, _, _ := newSystem(t)
	require.NoError(t, sys.Init())
	first := snapshot(t, sys)
	require.NoError(t, sys.Init())
	assert.JSONEq(t, first, snapshot(t, sys))
}

func TestInitFailsWithoutDataRoot(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Root = filepath.Join(t.TempDir(), "missing")
	sys := New(cfg, &countingRunner{})
	assert.Error(t, sys.Init())
}

func TestAfterChange(t *testing.T) {
	sys, root, runner := newSystem(t)
	require.NoError(t, sys.Init())
	sys.Wait()
	initial := runner.calls.Load()
	require.NotZero(t, initial)

	writeBase(t, root, "widgets", "second", "uuid = \"settings\"\nposition_x = 0\nposition_y = 0\nwidth = 1\nheight = 1\n")
	require.NoError(t, sys.Do(func(st *State) error {
		st.Dashboard.SetReloadRequested(false)
		require.NoError(t, st.AfterChange("settings"))
		assert.Len(t, st.Dashboard.Widgets(), 1, "settings is not reload sensitive")

		require.NoError(t, st.AfterChange("widgets"))
		assert.Len(t, st.Dashboard.Widgets(), 2)
		assert.True(t, st.Dashboard.ReloadRequested())
		return nil
	}))
	sys.Wait()
	assert.Equal(t, initial, runner.calls.Load(), "widget changes do not reprovision the network")

	require.NoError(t, sys.Do(func(st *State) error { return st.AfterChange("wifi") }))
	sys.Wait()
	assert.Greater(t, runner.calls.Load(), initial)
}

func TestDoReleasesLockAfterPanic(t *testing.T) {
	sys, _, _ := newSystem(t)
	require.NoError(t, sys.Init())

	assert.Panics(t, func() {
		_ = sys.Do(func(*State) error { panic("handler bug") })
	})

	sentinel := errors.New("reached")
	assert.ErrorIs(t, sys.Do(func(*State) error { return sentinel }), sentinel)
}
