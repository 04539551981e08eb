// Package config provides process configuration for the Hypefuse appliance
// server.
//
// # Configuration Sources
//
// Settings are resolved by viper in the usual order: explicit flag bindings,
// HYPEFUSE_* environment variables (dots replaced by underscores, so
// server.address becomes HYPEFUSE_SERVER_ADDRESS), the YAML config file, and
// finally the defaults returned by Defaults().
//
// On first start without --config a default file is written to
// $HOME/.hypefuse/config.yaml so the effective settings can be inspected and
// edited.
//
// # Process Configuration vs Configuration Bases
//
// This package only covers how the server process runs: listen address,
// worker count, data root and so on. The per-bundle key/value documents served
// over the /config_* endpoints live under the data root and are handled by
// package configuration.
package config
