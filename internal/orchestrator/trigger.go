package orchestrator

import (
	"context"
	"sync/atomic"
	"time"
)

// Trigger coalesces rebuild requests and spaces out the cycles they start.
// Any number of requests made while a cycle runs collapse into one.
type Trigger struct {
	minInterval time.Duration
	pending     chan struct{}
	last        time.Time

	requests  atomic.Int64
	coalesced atomic.Int64
}

// NewTrigger creates a trigger. Consecutive cycles start at least
// minInterval apart; zero or negative disables spacing.
func NewTrigger(minInterval time.Duration) *Trigger {
	return &Trigger{
		minInterval: minInterval,
		pending:     make(chan struct{}, 1),
	}
}

// Request asks for another cycle. It never blocks and reports whether the
// request was queued rather than merged into one already pending.
func (t *Trigger) Request() bool {
	t.requests.Add(1)
	select {
	case t.pending <- struct{}{}:
		return true
	default:
		t.coalesced.Add(1)
		return false
	}
}

// Next waits for a pending request, then for the remainder of the minimum
// interval since the previous Next returned. It returns ctx's error when
// ctx is done first. Next is meant for a single consumer loop.
func (t *Trigger) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.pending:
	}

	if delay := t.delay(time.Now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.last = time.Now()
	return nil
}

// MarkStarted records a cycle that began without a request, such as the
// initial build.
func (t *Trigger) MarkStarted() {
	t.last = time.Now()
}

func (t *Trigger) delay(now time.Time) time.Duration {
	if t.minInterval <= 0 || t.last.IsZero() {
		return 0
	}
	return t.minInterval - now.Sub(t.last)
}

// MinInterval returns the configured spacing.
func (t *Trigger) MinInterval() time.Duration {
	return t.minInterval
}

// Requests returns the total number of requests seen.
func (t *Trigger) Requests() int64 {
	return t.requests.Load()
}

// Coalesced returns how many requests were merged into a pending one.
func (t *Trigger) Coalesced() int64 {
	return t.coalesced.Load()
}
