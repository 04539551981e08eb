package main

import (
	"fmt"
	"os"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var log = logger.GetHypefuseLogger()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "hypefuse",
		Short:        "Hypefuse smart mirror appliance server",
		Long:         "Serves installed app bundles, their configuration and the dashboard over HTTP.",
		RunE:         runServe,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&config.CfgFile, "config", "", "config file (default is $HOME/.hypefuse/config.yaml)")
	pf.String("data", "", "data root holding one directory per scope")
	pf.String("addr", "", "listen address")
	pf.Int("workers", 0, "worker pool size")
	pf.Int("queue-depth", 0, "pending connection limit, 0 for unbounded")
	pf.Bool("watch", false, "reload when the data root changes on disk")
	_ = viper.BindPFlag("data.root", pf.Lookup("data"))
	_ = viper.BindPFlag("server.address", pf.Lookup("addr"))
	_ = viper.BindPFlag("server.workers", pf.Lookup("workers"))
	_ = viper.BindPFlag("server.queue_depth", pf.Lookup("queue-depth"))
	_ = viper.BindPFlag("watch.enabled", pf.Lookup("watch"))

	root.AddCommand(newServeCommand(), newConfigCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the appliance server (default command)",
		RunE:  runServe,
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "hypefuse "+version)
		},
	}
}

func main() {
	cobra.OnInitialize(config.InitConfig)
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("hypefuse_exited_with_error")
		os.Exit(1)
	}
}
