// Package cancel routes a host interrupt into an in-flight HTTP
// transaction.
//
// The host raises the interrupt with Interrupt. The transport observes it
// through Progress, which is consulted between body chunks, and through the
// context returned by Guard, which is polled on a fixed interval so that a
// transaction blocked on the network also unwinds. After the transaction
// has been torn down the caller calls Redeliver so the host's own interrupt
// handling still runs.
package cancel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrAborted is returned by Progress once an interrupt is pending.
var ErrAborted = errors.New("operation aborted by interrupt")

// DefaultPollInterval bounds the cancellation latency of a blocked transaction.
const DefaultPollInterval = 50 * time.Millisecond

// Bridge holds the interrupt flag for one session.
type Bridge struct {
	pending atomic.Bool
	forward atomic.Pointer[func()]
}

// Install sets the handler that Redeliver forwards to and returns a
// function restoring the previous one.
func (b *Bridge) Install(forward func()) (restore func()) {
	var next *func()
	if forward != nil {
		next = &forward
	}
	prev := b.forward.Swap(next)
	return func() { b.forward.Store(prev) }
}

// Interrupt raises the flag. Safe to call from any goroutine.
func (b *Bridge) Interrupt() {
	b.pending.Store(true)
}

// Clear lowers the flag before a new transaction starts.
func (b *Bridge) Clear() {
	b.pending.Store(false)
}

// Pending reports whether an interrupt is waiting.
func (b *Bridge) Pending() bool {
	return b.pending.Load()
}

// Progress is the transport's progress check. A non-nil result aborts the
// transaction.
func (b *Bridge) Progress() error {
	if b.pending.Load() {
		return ErrAborted
	}
	return nil
}

// Redeliver hands the interrupt to the previously installed handler.
func (b *Bridge) Redeliver() {
	if fn := b.forward.Load(); fn != nil {
		(*fn)()
	}
}

// Guard derives a context for one transaction. The context is cancelled
// with ErrAborted as cause once the flag is seen. Cancellation of parent
// raises the flag. stop must be called when the transaction ends.
func (b *Bridge) Guard(parent context.Context, interval time.Duration) (ctx context.Context, stop func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancelCause(parent)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-parent.Done():
				b.Interrupt()
				cancel(ErrAborted)
				return
			case <-ticker.C:
				if b.Pending() {
					cancel(ErrAborted)
					return
				}
			}
		}
	}()

	var stopped atomic.Bool
	return ctx, func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
			cancel(nil)
		}
	}
}

// Aborted reports whether ctx, as returned by Guard, was cancelled by an
// interrupt.
func Aborted(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrAborted)
}
