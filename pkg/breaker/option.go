package breaker

import "log/slog"

type options struct {
	clock     Clock
	logger    *slog.Logger
	listeners []Listener
}

// Option configures a Breaker beyond its required Settings.
type Option func(*options)

// WithClock sets the time source. Useful for testing.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the logger for transition and listener-failure records.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithListener registers a transition listener at construction. May be given
// multiple times; listeners are invoked in registration order.
func WithListener(l Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, l)
	}
}
