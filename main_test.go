package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func seedRoot(t *testing.T) config.HypefuseConfig {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "settings", "config")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general"), []byte("name = \"mirror\"\nbrightness = 70\n"), 0o644))

	cfg := config.Defaults()
	cfg.Data.Root = root
	return cfg
}

func TestDumpRegistryJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dumpRegistry(&out, seedRoot(t), "json"))
	assert.JSONEq(t, `{"settings":{"general":{"brightness":70,"name":"mirror"}}}`, out.String())
}

func TestDumpRegistryYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dumpRegistry(&out, seedRoot(t), "yaml"))

	var doc map[string]map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "mirror", doc["settings"]["general"]["name"])
	assert.Equal(t, 70, doc["settings"]["general"]["brightness"])
}

func TestDumpRegistryRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, dumpRegistry(&bytes.Buffer{}, seedRoot(t), "xml"))
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "hypefuse dev\n", out.String())
}
