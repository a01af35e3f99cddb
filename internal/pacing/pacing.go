package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer produces jittered delays. It is safe for concurrent use.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func New(seed int64) *Pacer {
	return &Pacer{
		rng:   rand.New(rand.NewSource(seed)),
		sleep: Sleep,
	}
}

func NewFromTime() *Pacer {
	return New(time.Now().UnixNano())
}

// Instant returns a Pacer that computes delays but never blocks.
func Instant(seed int64) *Pacer {
	p := New(seed)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	return p
}

// Duration picks a value in [min, max).
func (p *Pacer) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

func (p *Pacer) chance(rate float64) bool {
	if rate <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < rate
}

func (p *Pacer) pick(s string) string {
	runes := []rune(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	return string(runes[p.rng.Intn(len(runes))])
}

// Between blocks for a random duration in [min, max).
func (p *Pacer) Between(ctx context.Context, min, max time.Duration) error {
	return p.Wait(ctx, p.Duration(min, max))
}

// Wait blocks for d unless ctx ends first.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Range is a closed-open delay interval.
type Range struct {
	Min time.Duration
	Max time.Duration
}

func (r Range) Pick(p *Pacer) time.Duration {
	return p.Duration(r.Min, r.Max)
}

// Backoff widens the delay between cycle attempts after each failure.
type Backoff struct {
	pacer   *Pacer
	base    Range
	current Range
	factor  float64
	ceiling time.Duration
	mu      sync.Mutex
}

func NewBackoff(p *Pacer, base Range) *Backoff {
	return &Backoff{
		pacer:   p,
		base:    base,
		current: base,
		factor:  1.5,
		ceiling: 60 * time.Second,
	}
}

// Wait sleeps for the current range and then widens it.
func (b *Backoff) Wait(ctx context.Context) error {
	b.mu.Lock()
	r := b.current
	b.current = Range{Min: b.grow(r.Min), Max: b.grow(r.Max)}
	b.mu.Unlock()

	return b.pacer.Between(ctx, r.Min, r.Max)
}

func (b *Backoff) Current() Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.base
}

func (b *Backoff) grow(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * b.factor)
	if next > b.ceiling {
		return b.ceiling
	}
	return next
}
