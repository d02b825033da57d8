// Package gate serialises access to a pool's critical section.
//
// Locks are leases: every acquisition carries a TTL, and an expired lease
// can be taken over by the next caller. A holder that crashes or hangs
// therefore blocks its pool for at most one TTL. Stores still version-check
// every commit, so a holder whose lease lapsed cannot overwrite newer state.
package gate

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned when the lock stays held for longer than the
// configured wait.
var ErrBusy = errors.New("gate: pool is busy")

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Gate hands out per-key exclusive leases.
type Gate interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Options tune lease and wait behaviour.
type Options struct {
	// LeaseTTL bounds how long a lease stays valid without release.
	LeaseTTL time.Duration
	// Wait is how long Acquire keeps retrying a held lock. Zero fails fast.
	Wait time.Duration
	// PollInterval is the retry period while waiting.
	PollInterval time.Duration
}

// DefaultOptions returns a 10s lease, 2s wait and 10ms polling.
func DefaultOptions() Options {
	return Options{
		LeaseTTL:     10 * time.Second,
		Wait:         2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = def.LeaseTTL
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	return o
}

// acquireLoop retries try until it succeeds, the wait elapses or ctx ends.
func acquireLoop(ctx context.Context, opts Options, try func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(opts.Wait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrBusy
		}

		timer := time.NewTimer(opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
