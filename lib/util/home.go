package util

import (
	"os"
)

// UserHome returns the current user's home directory.
// Falls back to $HOME, then to the working directory, so an appliance started
// by an init system without a home directory can still locate its config.
func UserHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if home := os.Getenv("HOME"); home != "" {
			log.WithError(err).Warn("os.UserHomeDir failed, falling back to $HOME")
			return home
		}
		if wd, wdErr := os.Getwd(); wdErr == nil {
			log.WithError(err).Warn("os.UserHomeDir and $HOME unavailable; falling back to working directory")
			return wd
		}
		panic("hypefuse: unable to determine home directory; set $HOME environment variable")
	}

	return homeDir
}
