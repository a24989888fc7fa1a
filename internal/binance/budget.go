package binance

import (
	"context"
	"sync"
	"time"
)

// DefaultWeightLimit keeps ~50% headroom under the exchange's published
// 1200 weight-per-minute ceiling.
const (
	DefaultWeightLimit  = 600
	DefaultWeightWindow = time.Minute
)

// WeightBudget is a fixed-window weight bucket shared by every request made
// with one account's credentials. Acquire is the only intentional blocking
// point in the client besides network I/O.
type WeightBudget struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	used        int
	windowStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWeightBudget creates a budget of limit weight units per window.
func NewWeightBudget(limit int, window time.Duration) *WeightBudget {
	if limit <= 0 {
		limit = DefaultWeightLimit
	}
	if window <= 0 {
		window = DefaultWeightWindow
	}
	return &WeightBudget{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks the caller until weight units are available in the current
// window, resetting the window once it elapses. It returns early only when
// the context is cancelled.
func (b *WeightBudget) Acquire(ctx context.Context, weight int) error {
	for {
		b.mu.Lock()
		now := b.now()
		if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.window {
			b.windowStart = now
			b.used = 0
		}
		if b.used+weight <= b.limit {
			b.used += weight
			b.mu.Unlock()
			return nil
		}
		// A weight heavier than the whole window still has to go out.
		// It gets an empty window to itself and spends it whole.
		if weight > b.limit && b.used == 0 {
			b.used = b.limit
			b.mu.Unlock()
			return nil
		}
		wait := b.window - now.Sub(b.windowStart)
		b.mu.Unlock()

		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Used reports the weight consumed in the current window.
func (b *WeightBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.windowStart.IsZero() && b.now().Sub(b.windowStart) >= b.window {
		return 0
	}
	return b.used
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
