package configuration

import "errors"

var (
	ErrBaseExists       = errors.New("configuration base already exists")
	ErrBaseNotFound     = errors.New("configuration base not found")
	ErrKeyNotFound      = errors.New("configuration key not found")
	ErrUnsupportedValue = errors.New("unsupported configuration value")
	// ErrBaseFileMissing marks a registry entry whose backing file is gone,
	// e.g. after an interrupted delete. Reloading or deleting the base clears it.
	ErrBaseFileMissing = errors.New("configuration base file missing")
	ErrInvalidName     = errors.New("invalid scope or base name")
)
