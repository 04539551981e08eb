//go:build windows

package signals

import (
	"os"
	"os/signal"
)

func notify(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func classify(sig os.Signal) action {
	if sig == os.Interrupt {
		return actionShutdown
	}
	return actionIgnore
}
