// Package poll runs bounded, fixed-interval polling loops against pull-based
// signals. All waiting goes through a Clock so tests never sleep for real.
package poll

import (
	"context"
	"errors"
	"time"
)

var ErrExhausted = errors.New("poll attempts exhausted")

type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock sleeps on the wall clock and wakes early on ctx cancellation.
func RealClock() Clock { return realClock{} }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller calls a probe every Interval until it reports done, it fails, or
// MaxAttempts probes have been made. MaxAttempts <= 0 means one attempt.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
}

// Probe is one observation. Returning done=true stops the loop successfully.
type Probe func(ctx context.Context, attempt int) (done bool, err error)

// Until sleeps Interval before each probe, mirroring a "wait then look" loop.
func (p Poller) Until(ctx context.Context, probe Probe) error {
	clock := p.Clock
	if clock == nil {
		clock = RealClock()
	}
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = 1
	}

	for attempt := 1; attempt <= limit; attempt++ {
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return err
		}
		done, err := probe(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrExhausted
}

// Sleep waits once on the poller's clock.
func (p Poller) Sleep(ctx context.Context, d time.Duration) error {
	clock := p.Clock
	if clock == nil {
		clock = RealClock()
	}
	return clock.Sleep(ctx, d)
}
