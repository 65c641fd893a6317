package throttle

import (
	"context"
	"time"
)

// Config controls pacing of aggregate writes. Unlike SuppressFor and
// QueueSize, a zero MinSpacing or DedupeWindow is kept as is and turns that
// check off; start from DefaultConfig for production pacing.
type Config struct {
	// MinSpacing is the minimum gap between physical writes. Zero disables spacing.
	MinSpacing time.Duration
	// DedupeWindow skips a patch identical to the previous one within it.
	// Zero disables deduplication.
	DedupeWindow time.Duration
	// SuppressFor is how long writes are dropped after a quota error. Zero
	// means the default window.
	SuppressFor time.Duration
	QueueSize   int
	// WritesDisabled turns every submit into a suppressed no-op.
	WritesDisabled bool
}

func DefaultConfig() Config {
	return Config{
		MinSpacing:   800 * time.Millisecond,
		DedupeWindow: 1500 * time.Millisecond,
		SuppressFor:  5 * time.Minute,
		QueueSize:    256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinSpacing < 0 {
		c.MinSpacing = 0
	}
	if c.DedupeWindow < 0 {
		c.DedupeWindow = 0
	}
	if c.SuppressFor <= 0 {
		c.SuppressFor = d.SuppressFor
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

type Option func(*Service)

func WithHooks(h Hooks) Option {
	return func(s *Service) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithClock replaces the wall clock and the spacing sleep, for tests. now
// drives the dedupe window, spacing and the quota suppression window.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
