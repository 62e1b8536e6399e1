package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Tripped; calls are rejected immediately.
	StateHalfOpen              // Probing; a single call at a time tests recovery.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings holds the construction parameters of a Breaker. All fields are
// required and validated by New.
type Settings struct {
	// FailureThreshold is the number of consecutive failures while closed
	// that trips the breaker open. Must be positive.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successful probes while
	// half-open required to close the breaker. Must be positive.
	SuccessThreshold int

	// RecoveryTimeout is the minimum time the breaker stays open before a
	// call may run as a recovery probe. Must not be negative.
	RecoveryTimeout time.Duration
}

// Validate reports whether the settings are usable.
func (s Settings) Validate() error {
	if s.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be positive, got %d", s.FailureThreshold)
	}
	if s.SuccessThreshold < 1 {
		return fmt.Errorf("success threshold must be positive, got %d", s.SuccessThreshold)
	}
	if s.RecoveryTimeout < 0 {
		return fmt.Errorf("recovery timeout must not be negative, got %s", s.RecoveryTimeout)
	}
	return nil
}

// Func is the function signature for protected operations.
type Func func(ctx context.Context) error

// Breaker is a consecutive-failure circuit breaker guarding one downstream
// dependency. Safe for concurrent use.
type Breaker struct {
	name string
	cfg  Settings

	clock  Clock
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	generation    uint64
	failures      int
	successes     int
	probeInFlight bool
	openedAt      time.Time
	listeners     []Listener
}

// New creates a Breaker named after the dependency it protects. The settings
// are fixed for the breaker's lifetime.
func New(name string, cfg Settings, opts ...Option) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("breaker %q: %w", name, err)
	}
	return newBreaker(name, cfg, opts), nil
}

// newBreaker constructs without validating cfg. Callers validate first.
func newBreaker(name string, cfg Settings, opts []Option) *Breaker {
	o := options{
		clock:  realClock{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Breaker{
		name:      name,
		cfg:       cfg,
		clock:     o.clock,
		logger:    o.logger,
		state:     StateClosed,
		listeners: o.listeners,
	}
}

// Do executes op with circuit breaker protection. While the breaker is open,
// or while another probe is pending, op is not invoked and Do returns an
// *OpenError. Otherwise Do returns whatever op returns, unmodified.
func (b *Breaker) Do(ctx context.Context, op Func) error {
	gen, probe, err := b.allow()
	if err != nil {
		return err
	}

	opErr := op(ctx)

	b.settle(gen, probe, opErr)

	return opErr
}

// allow decides whether a call may proceed and, when the breaker is eligible
// for recovery, claims the probe slot for this call. It returns the generation
// the call was admitted under and whether the call runs as the probe.
func (b *Breaker) allow() (gen uint64, probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		remaining := b.cfg.RecoveryTimeout - b.clock.Now().Sub(b.openedAt)
		if remaining > 0 {
			return 0, false, &OpenError{Name: b.name, State: StateOpen, RetryAfter: remaining}
		}
		// Recovery timeout elapsed. This call becomes the probe.
		b.transitionTo(StateHalfOpen, ReasonRecoveryTimeout)
		b.probeInFlight = true
		return b.generation, true, nil

	case StateHalfOpen:
		if b.probeInFlight {
			return 0, false, &OpenError{Name: b.name, State: StateHalfOpen}
		}
		b.probeInFlight = true
		return b.generation, true, nil

	default:
		return b.generation, false, nil
	}
}

// settle applies a call's outcome to the counters. Outcomes from a previous
// generation are discarded: a transition or reset that happened while the call
// was in flight has already invalidated them.
func (b *Breaker) settle(gen uint64, probe bool, opErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}
	if probe {
		b.probeInFlight = false
	}

	switch b.state {
	case StateClosed:
		if opErr != nil {
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				b.transitionTo(StateOpen, ReasonThresholdExceeded)
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		if opErr != nil {
			b.transitionTo(StateOpen, ReasonProbeFailed)
		} else {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transitionTo(StateClosed, ReasonFullyRecovered)
			} else {
				// Still half-open; the gate is re-armed for the next probe.
				b.notify(StateHalfOpen, StateHalfOpen, ReasonProbeSucceeded)
			}
		}
	}
}

// transitionTo changes the breaker state, notifying listeners and logging.
// Must be called with b.mu held.
func (b *Breaker) transitionTo(to State, reason Reason) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.generation++
	b.failures = 0
	b.successes = 0
	b.probeInFlight = false

	if to == StateOpen {
		b.openedAt = b.clock.Now()
	}

	b.logger.Info("circuit breaker state change",
		"breaker", b.name,
		"from", from.String(),
		"to", to.String(),
		"reason", string(reason),
	)

	b.notify(from, to, reason)
}

// notify invokes the registered listeners in order. A panicking listener is
// recovered so it cannot corrupt breaker state. Must be called with b.mu
// held; listeners must not call back into the breaker.
func (b *Breaker) notify(from, to State, reason Reason) {
	for _, l := range b.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("circuit breaker listener panic",
						"breaker", b.name,
						"panic", r,
					)
				}
			}()
			l(b.name, from, to, reason)
		}()
	}
}

// Subscribe registers a listener invoked synchronously on every state change.
func (b *Breaker) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// State returns the state as of the most recently completed transition. It
// never triggers a transition itself: an open breaker whose recovery timeout
// has elapsed stays open until a call claims the probe.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current consecutive failure and success counts.
func (b *Breaker) Counts() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.successes
}

// Name returns the name of the protected dependency.
func (b *Breaker) Name() string {
	return b.name
}

// Reset forces the breaker back to closed with zero counters. An in-flight
// probe's outcome is discarded when it settles.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed, ReasonManualReset)
}

// Snapshot returns a point-in-time view of the breaker for reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Name:          b.name,
		State:         b.state.String(),
		Failures:      b.failures,
		Successes:     b.successes,
		ProbeInFlight: b.probeInFlight,
		OpenedAt:      b.openedAt,
	}
	if b.state == StateOpen {
		if remaining := b.cfg.RecoveryTimeout - b.clock.Now().Sub(b.openedAt); remaining > 0 {
			snap.RetryAfterMS = remaining.Milliseconds()
		}
	}
	return snap
}

// Snapshot is a point-in-time view of a breaker, shaped for JSON reporting.
type Snapshot struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	Failures      int       `json:"failures"`
	Successes     int       `json:"successes"`
	ProbeInFlight bool      `json:"probe_in_flight"`
	OpenedAt      time.Time `json:"opened_at"`
	RetryAfterMS  int64     `json:"retry_after_ms"`
}
