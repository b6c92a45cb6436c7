// Package ratelimit implements the token bucket that admits every outbound
// call to the remote service.
//
// The bucket refills fully once per elapsed interval rather than dripping
// tokens, which matches fixed-window quotas such as "60 calls per minute".
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrInvalidCapacity is returned by New when capacity < 1.
	ErrInvalidCapacity = errors.New("capacity size must be greater than 0")
	// ErrInvalidInterval is returned by New when the interval is < 1 second.
	ErrInvalidInterval = errors.New("interval size must be greater than 0")
	// ErrCostExceedsCapacity is returned by Wait for a cost no refill can satisfy.
	ErrCostExceedsCapacity = errors.New("cost exceeds bucket capacity")
	// ErrInvalidCost is returned by Wait for a cost < 1.
	ErrInvalidCost = errors.New("cost must be greater than 0")
)

// Gate admits outbound calls. *Bucket satisfies it; tests substitute fakes.
type Gate interface {
	Wait(ctx context.Context, cost int) error
}

// Clock returns the current time.
type Clock func() time.Time

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(b *Bucket) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithSleeper overrides how BlockUntilReady waits.
func WithSleeper(sleep Sleeper) Option {
	return func(b *Bucket) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// WithObserver registers a callback invoked before every denied-admission wait.
func WithObserver(fn func(seconds int)) Option {
	return func(b *Bucket) {
		b.onWait = fn
	}
}

// Bucket is a mutex-guarded token bucket with full refill on elapsed interval.
type Bucket struct {
	capacity int
	interval time.Duration

	mu           sync.Mutex
	tokens       int
	lastRefillAt time.Time

	now    Clock
	sleep  Sleeper
	onWait func(seconds int)
}

// New creates a full bucket holding capacity tokens, refilled every
// intervalSeconds.
func New(capacity, intervalSeconds int, opts ...Option) (*Bucket, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if intervalSeconds < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalSeconds)
	}

	b := &Bucket{
		capacity: capacity,
		interval: time.Duration(intervalSeconds) * time.Second,
		tokens:   capacity,
		now:      time.Now,
		sleep:    SleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefillAt = b.now()
	return b, nil
}

// Capacity returns the maximum number of tokens.
func (b *Bucket) Capacity() int { return b.capacity }

// Interval returns the refill interval.
func (b *Bucket) Interval() time.Duration { return b.interval }

// Tokens returns the tokens currently available, without refilling.
func (b *Bucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// SecondsToNextRefill returns the whole seconds (rounded up) until the next
// refill becomes due, or 0 if it is already due.
func (b *Bucket) SecondsToNextRefill() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.secondsToNextRefillLocked()
}

func (b *Bucket) secondsToNextRefillLocked() int {
	remaining := b.interval - b.now().Sub(b.lastRefillAt)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// TryAcquire refills the bucket if the interval elapsed, then takes cost
// tokens if enough are available. It never blocks.
func (b *Bucket) TryAcquire(cost int) bool {
	if cost < 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= cost {
		b.tokens -= cost
		return true
	}
	return false
}

func (b *Bucket) refillLocked() bool {
	now := b.now()
	if now.Sub(b.lastRefillAt) >= b.interval {
		b.tokens = b.capacity
		b.lastRefillAt = now
		return true
	}
	return false
}

// BlockUntilReady suspends the caller for the given number of seconds. The
// caller retries its admission afterwards; the bucket does not retry for it.
func (b *Bucket) BlockUntilReady(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return ctx.Err()
	}
	if b.onWait != nil {
		b.onWait(seconds)
	}
	return b.sleep(ctx, time.Duration(seconds)*time.Second)
}

// Wait blocks until cost tokens are admitted. Denied callers sleep until the
// next refill and try again.
func (b *Bucket) Wait(ctx context.Context, cost int) error {
	if cost < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCost, cost)
	}
	if cost > b.capacity {
		return fmt.Errorf("%w: cost %d, capacity %d", ErrCostExceedsCapacity, cost, b.capacity)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.TryAcquire(cost) {
			return nil
		}
		// A zero wait means the refill is due; the next TryAcquire takes it.
		if err := b.BlockUntilReady(ctx, b.SecondsToNextRefill()); err != nil {
			return err
		}
	}
}

// SleepContext is the default Sleeper: it waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
