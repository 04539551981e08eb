// Package configuration implements the persistent configuration store used by
// bundles and device settings.
//
// A Base is one TOML document on disk holding a flat set of typed properties.
// Every mutation is written through: the whole document is re-serialized and
// atomically replaced before the setter returns, so the in-memory properties
// and the file agree at every point between calls.
//
// A Registry indexes loaded bases by path. Paths follow the data layout
//
//	<root>/<scope>/config/<base>
//
// where scope is a bundle UUID or a device scope such as "widgets" or "wifi".
// A scope that is a bundle additionally holds its manifest base named
// "bundle", which is excluded from BasesOfBundle.
//
// Neither Base nor Registry is safe for concurrent use; the system state
// serializes every access behind a single lock.
package configuration
