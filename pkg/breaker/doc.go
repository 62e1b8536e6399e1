// Package breaker implements a consecutive-failure circuit breaker for
// guarding calls to an unreliable downstream dependency, such as a model
// provider or an external API.
//
// A Breaker wraps an opaque unit of work. It observes only success or
// failure; it never retries, never queues, and never modifies the error the
// operation returns. Callers compose it with their own retry or fallback
// policies.
//
// # Quick Start
//
//	b, err := breaker.New("anthropic", breaker.Settings{
//	    FailureThreshold: 3,
//	    SuccessThreshold: 2,
//	    RecoveryTimeout:  30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = b.Do(ctx, func(ctx context.Context) error {
//	    return callProvider(ctx)
//	})
//	if breaker.IsOpen(err) {
//	    // rejected without executing; fail over or surface immediately
//	}
//
// For operations that return a value, use the generic wrapper:
//
//	resp, err := breaker.Run(ctx, b, func(ctx context.Context) (*Response, error) {
//	    return client.Send(ctx, req)
//	})
//
// # Circuit States
//
// The breaker cycles through three states:
//
//   - closed: calls pass through. Consecutive failures are counted; reaching
//     FailureThreshold trips the breaker open. Any success resets the count.
//   - open: calls are rejected immediately with an *OpenError carrying the
//     time remaining until a probe is allowed. The wrapped operation is never
//     invoked.
//   - half-open: entered when a call arrives after RecoveryTimeout has
//     elapsed. That call runs as the recovery probe. At most one probe is in
//     flight at a time; concurrent calls are rejected while it is pending.
//     SuccessThreshold consecutive probe successes close the breaker; a
//     single probe failure reopens it and restarts the recovery timer.
//
// The open to half-open transition happens only when a call claims the
// probe, not lazily when state is read. State therefore always reports the
// last completed transition.
//
// # Observing Transitions
//
// Register listeners with WithListener or Subscribe to feed logs, metrics,
// or a health surface:
//
//	b.Subscribe(func(name string, from, to breaker.State, reason breaker.Reason) {
//	    log.Printf("%s: %s -> %s (%s)", name, from, to, reason)
//	})
//
// Listeners run synchronously on the transitioning goroutine and must not
// call back into the breaker. Panics are recovered and logged.
//
// # Testing
//
// Inject a Clock to simulate elapsed recovery time deterministically:
//
//	type fakeClock struct{ now time.Time }
//
//	func (c *fakeClock) Now() time.Time            { return c.now }
//	func (c *fakeClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }
//
//	clock := &fakeClock{now: time.Now()}
//	b, _ := breaker.New("dep", settings, breaker.WithClock(clock))
//	// trip the breaker, then:
//	clock.Advance(settings.RecoveryTimeout)
//	// the next Do runs as the probe
package breaker
