package docstore

import "time"

const defaultMaxAttempts = 5

type options struct {
	hooks       Hooks
	maxAttempts int
	now         func() time.Time
}

// Option configures a Store implementation.
type Option func(*options)

// WithHooks installs observability hooks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithMaxAttempts bounds transaction attempts on conflicting commits.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithClock overrides the wall clock behind Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{hooks: noopHooks{}, maxAttempts: defaultMaxAttempts, now: time.Now}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
