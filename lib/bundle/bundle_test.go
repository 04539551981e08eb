package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func installBundle(t *testing.T, root, uuid string) {
	t.Helper()
	writeFile(t, filepath.Join(root, uuid, configuration.ConfigDir, configuration.ManifestBase),
		"uuid = \""+uuid+"\"\nfolders = [\"app\", \"lib\"]\n")
	writeFile(t, filepath.Join(root, uuid, "app", "index.html"), "<h1>"+uuid+"</h1>")
	writeFile(t, filepath.Join(root, uuid, "lib", "lib.js"), "export {}")
}

func loadedManager(t *testing.T, root string) *Manager {
	t.Helper()
	reg := configuration.NewRegistry(root)
	require.NoError(t, reg.LoadAll(root))
	m := NewManager()
	m.Init(reg)
	return m
}

func TestManagerInitDiscoversBundles(t *testing.T) {
	root := t.TempDir()
	installBundle(t, root, "settings")
	installBundle(t, root, "clock")
	writeFile(t, filepath.Join(root, "wifi", configuration.ConfigDir, "home"), "name = \"home\"\npassword = \"pw\"\n")

	m := loadedManager(t, root)
	require.Equal(t, 2, m.Len())

	list := m.List()
	assert.Equal(t, "clock", list[0].UUID)
	assert.Equal(t, "settings", list[1].UUID)

	base, ok := m.BasePath("settings")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "settings"), base)

	b, _ := m.Get("clock")
	assert.Equal(t, filepath.Join(root, "clock", "lib"), b.Folders["lib"])

	_, ok = m.Get("wifi")
	assert.False(t, ok, "scopes without a manifest are not bundles")
}

func TestManagerSkipsMalformedManifest(t *testing.T) {
	root := t.TempDir()
	installBundle(t, root, "good")
	writeFile(t, filepath.Join(root, "bad", configuration.ConfigDir, configuration.ManifestBase), "uuid = 5\n")

	m := loadedManager(t, root)
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get("good")
	assert.True(t, ok)
}

func TestManagerKeepsFirstDuplicateUUID(t *testing.T) {
	root := t.TempDir()
	for _, scope := range []string{"alpha", "beta"} {
		writeFile(t, filepath.Join(root, scope, configuration.ConfigDir, configuration.ManifestBase),
			"uuid = \"clock\"\nfolders = [\"app\"]\n")
	}

	hook := logtest.NewLocal(log.Logger)
	level := log.GetLevel()
	log.SetLevel(logrus.WarnLevel)
	t.Cleanup(func() {
		log.SetLevel(level)
		hook.Reset()
	})

	m := loadedManager(t, root)
	require.Equal(t, 1, m.Len())
	base, ok := m.BasePath("clock")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "alpha"), base)

	var dup *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "duplicate_bundle_uuid" {
			dup = e
		}
	}
	require.NotNil(t, dup)
	assert.Equal(t, filepath.Join(root, "alpha"), dup.Data["kept"])
	assert.Equal(t, filepath.Join(root, "beta"), dup.Data["skipped"])
}

func TestManagerInitReplacesTable(t *testing.T) {
	root := t.TempDir()
	installBundle(t, root, "clock")
	m := loadedManager(t, root)
	require.Equal(t, 1, m.Len())

	m.Init(configuration.NewRegistry(root))
	assert.Equal(t, 0, m.Len())
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	installBundle(t, root, "clock")
	b, _ := loadedManager(t, root).Get("clock")

	p, data, err := b.ReadFile("", "app/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>clock</h1>", string(data))
	assert.Equal(t, filepath.Join(root, "clock", "app", "index.html"), p)

	_, data, err = b.ReadFile("lib/lib.js", "app/index.html")
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))

	_, _, err = b.ReadFile("missing.txt", "app/index.html")
	assert.True(t, errors.Is(err, ErrFileNotFound))

	_, _, err = b.ReadFile("app", "app/index.html")
	assert.True(t, errors.Is(err, ErrFileNotFound), "directories are not served")
}

func TestResolveStaysInsideBundle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "secret.txt"), "top secret")
	b := &Bundle{UUID: "clock", BasePath: filepath.Join(root, "clock")}

	for _, rel := range []string{"../secret.txt", "../../secret.txt", "app/../../secret.txt", "/../secret.txt"} {
		p, err := b.Resolve(rel)
		require.NoError(t, err, rel)
		assert.Equal(t, filepath.Join(root, "clock", "secret.txt"), p, rel)
	}

	_, _, err := b.ReadFile("../secret.txt", "app/index.html")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}
