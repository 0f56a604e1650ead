// Package signalutil models the "global signal-set flag" of the
// original implementation as a first-class cancellation handle: a
// context.Context plus the CancelFunc that a signal handler calls. This
// is the handle every blocking loop in the pipeline selects on.
package signalutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownHandle bundles the context every loop should select on with
// the signal-driven cancel function.
type ShutdownHandle struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// WatchSignals returns a ShutdownHandle whose context is canceled when
// the process receives SIGTERM or SIGINT. The signal handler itself
// only calls cancel; it never touches sockets or files directly.
func WatchSignals() *ShutdownHandle {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-ch
		cancel()
	}()

	return &ShutdownHandle{Ctx: ctx, Cancel: cancel}
}

// Done reports whether the handle has already been canceled.
func (h *ShutdownHandle) Done() bool {
	select {
	case <-h.Ctx.Done():
		return true
	default:
		return false
	}
}
