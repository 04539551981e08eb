package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/system"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type offlineRunner struct{}

func (offlineRunner) Run(context.Context, string, ...string) error { return nil }

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration registry",
	}

	var format string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print every configuration base grouped by scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewConfigFromViper()
			return dumpRegistry(cmd.OutOrStdout(), cfg, format)
		},
	}
	dump.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.AddCommand(dump)
	return cmd
}

// dumpRegistry loads the data root without provisioning the network and
// writes the registry in the requested format.
func dumpRegistry(w io.Writer, cfg config.HypefuseConfig, format string) error {
	cfg.Network.Enabled = false
	sys := system.New(cfg, offlineRunner{})
	if err := sys.Init(); err != nil {
		return err
	}

	var doc map[string]map[string]map[string]any
	_ = sys.Do(func(st *system.State) error {
		doc = st.Registry.Document()
		return nil
	})

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return oops.Wrapf(err, "failed to encode registry as yaml")
		}
		return enc.Close()
	default:
		return oops.Errorf("unknown format %q", format)
	}
}
