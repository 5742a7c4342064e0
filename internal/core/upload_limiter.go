package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBusy is returned when every processing slot stays taken for longer than
// the configured wait. Clients should retry after a short delay.
var ErrBusy = errors.New("too many uploads in progress")

// opLimiter bounds how many loads and saves may hold or wait for the
// service lock. Without it a burst of uploads would pile up behind the
// mutex, each holding its request body open.
type opLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

func newOpLimiter(maxConcurrent int, maxWait time.Duration) *opLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &opLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// acquire takes a slot, waiting at most maxWait. The caller must release it.
func (l *opLimiter) acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	default:
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *opLimiter) release() {
	l.active.Add(-1)
	<-l.slots
}

func (l *opLimiter) activeCount() int {
	return int(l.active.Load())
}

// waitForDrain blocks until no operation holds a slot.
func (l *opLimiter) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.activeCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
