// Package ratelimit serializes calls to a quota-constrained API. Callers wait
// in a single FIFO admission queue; each admission is spaced from the previous
// one by a base delay plus an extra delay that grows with consecutive
// throttling responses.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config controls admission spacing.
type Config struct {
	// BaseDelay is the minimum spacing between admissions. Default: 250ms.
	BaseDelay time.Duration
	// BackoffStep is the extra delay added per consecutive 429. Default: 500ms.
	BackoffStep time.Duration
	// MaxBackoff caps the extra delay. Default: 2s.
	MaxBackoff time.Duration
	// OnAdmit, if set, observes every admission time.
	OnAdmit func(at time.Time)
}

// DefaultConfig returns spacing tuned for ~4 req/s with two calls per lead.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   250 * time.Millisecond,
		BackoffStep: 500 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// Limiter is process-local; it does not coordinate across processes.
type Limiter struct {
	cfg Config

	// queue admits one waiter at a time. Goroutines blocked on a channel send
	// are released in arrival order, which gives FIFO admission.
	queue chan struct{}

	mu          sync.Mutex
	lastAdmit   time.Time
	consecutive int
}

// New creates a Limiter, filling unset fields from DefaultConfig.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = def.BackoffStep
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return &Limiter{
		cfg:   cfg,
		queue: make(chan struct{}, 1),
	}
}

// WaitIfNeeded blocks until the caller may issue its request. The admission
// time is recorded before returning, so spacing is measured admission to
// admission regardless of how long each request takes.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	select {
	case l.queue <- struct{}{}:
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ratelimit: waiting for queue")
	}
	defer func() { <-l.queue }()

	l.mu.Lock()
	last := l.lastAdmit
	delay := l.requiredDelayLocked()
	l.mu.Unlock()

	if !last.IsZero() {
		if wait := delay - time.Since(last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return eris.Wrap(ctx.Err(), "ratelimit: waiting for slot")
			case <-timer.C:
			}
		}
	}

	now := time.Now()
	l.mu.Lock()
	l.lastAdmit = now
	l.mu.Unlock()

	if l.cfg.OnAdmit != nil {
		l.cfg.OnAdmit(now)
	}
	return nil
}

// Increment429 records a throttling response.
func (l *Limiter) Increment429() {
	l.mu.Lock()
	l.consecutive++
	n := l.consecutive
	l.mu.Unlock()
	zap.L().Warn("ratelimit: throttled", zap.Int("consecutive_429", n), zap.Duration("extra_delay", l.ExtraDelay()))
}

// Reset429 clears the throttling counter after a successful call.
func (l *Limiter) Reset429() {
	l.mu.Lock()
	l.consecutive = 0
	l.mu.Unlock()
}

// Consecutive429 returns the current throttling counter.
func (l *Limiter) Consecutive429() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consecutive
}

// ExtraDelay returns min(counter*BackoffStep, MaxBackoff).
func (l *Limiter) ExtraDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.extraDelayLocked()
}

// RequiredDelay returns BaseDelay + ExtraDelay.
func (l *Limiter) RequiredDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requiredDelayLocked()
}

func (l *Limiter) extraDelayLocked() time.Duration {
	extra := time.Duration(l.consecutive) * l.cfg.BackoffStep
	if extra > l.cfg.MaxBackoff {
		extra = l.cfg.MaxBackoff
	}
	return extra
}

func (l *Limiter) requiredDelayLocked() time.Duration {
	return l.cfg.BaseDelay + l.extraDelayLocked()
}
