//go:build !windows

package signals

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReloadSignalKeepsRunning(t *testing.T) {
	d := New(time.Second)
	reloads := make(chan struct{}, 2)
	d.OnReload(func() { reloads <- struct{}{} })
	d.OnReload(func() { panic("reload bug") })

	done := runAsync(d)
	d.ch <- syscall.SIGHUP

	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("reload handler not called")
	}

	d.ch <- syscall.SIGTERM
	select {
	case sig := <-done:
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}
}

func TestClassifyUnixSignals(t *testing.T) {
	assert.Equal(t, actionReload, classify(syscall.SIGHUP))
	assert.Equal(t, actionShutdown, classify(syscall.SIGTERM))
	assert.Equal(t, actionIgnore, classify(syscall.SIGUSR1))
}
