package util

import (
	"errors"
	"io"
	"sync"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

var (
	closeOnExit []namedCloser
	closeMutex  sync.Mutex
)

// RegisterCloser registers an io.Closer to be closed during shutdown.
// Closers run in reverse registration order.
func RegisterCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	closeMutex.Lock()
	defer closeMutex.Unlock()
	closeOnExit = append(closeOnExit, namedCloser{name: name, c: c})
	log.WithFields(logger.Fields{"name": name, "count": len(closeOnExit)}).Debug("registered_closer")
}

// CloseAll closes all registered closers and clears the list. Every closer is
// attempted; the returned error joins the individual failures.
func CloseAll() error {
	closeMutex.Lock()
	defer closeMutex.Unlock()

	var errs []error
	for idx := len(closeOnExit) - 1; idx >= 0; idx-- {
		nc := closeOnExit[idx]
		if err := nc.c.Close(); err != nil {
			log.WithFields(logger.Fields{"name": nc.name}).WithError(err).Warn("error_closing_resource")
			errs = append(errs, err)
		}
	}
	closeOnExit = nil
	return errors.Join(errs...)
}
