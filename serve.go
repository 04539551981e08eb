package main

import (
	"os"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/network"
	"github.com/Lorinet/Hypefuse/lib/server"
	"github.com/Lorinet/Hypefuse/lib/system"
	"github.com/Lorinet/Hypefuse/lib/util"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/Lorinet/Hypefuse/lib/util/signals"
	"github.com/Lorinet/Hypefuse/lib/watcher"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func runServe(*cobra.Command, []string) error {
	cfg := config.NewConfigFromViper()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		return oops.Wrapf(err, "cannot create data root %s", cfg.Data.Root)
	}

	log.WithFields(logger.Fields{
		"at":      "runServe",
		"version": version,
		"data":    cfg.Data.Root,
		"address": cfg.Server.Address,
	}).Info("starting_hypefuse")

	sys := system.New(cfg, network.ExecRunner{})
	if err := sys.Init(); err != nil {
		return err
	}

	srv, err := server.New(cfg.Server, sys)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	util.RegisterCloser("server", srv)

	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Data.Root, cfg.Watch.MinInterval, sys.Init)
		if err != nil {
			_ = util.CloseAll()
			return err
		}
		if err := w.Start(); err != nil {
			_ = util.CloseAll()
			return err
		}
		util.RegisterCloser("watcher", w)
	}

	sig := signals.New(signals.DefaultShutdownTimeout)
	sig.OnReload(func() {
		if err := sys.Init(); err != nil {
			log.WithField("at", "runServe").WithError(err).Error("reload_failed")
		}
	})
	sig.OnShutdown(func() {
		if err := util.CloseAll(); err != nil {
			log.WithField("at", "runServe").WithError(err).Warn("shutdown_incomplete")
		}
		sys.Wait()
	})
	sig.Start()
	received := sig.Run()

	log.WithFields(logger.Fields{
		"at":     "runServe",
		"signal": received,
	}).Info("hypefuse_stopped")
	return nil
}
