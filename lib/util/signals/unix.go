//go:build !windows

package signals

import (
	"os"
	"os/signal"
	"syscall"
)

func notify(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

func classify(sig os.Signal) action {
	switch sig {
	case syscall.SIGHUP:
		return actionReload
	case syscall.SIGINT, syscall.SIGTERM:
		return actionShutdown
	default:
		return actionIgnore
	}
}
