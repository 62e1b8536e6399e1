package breaker

// Reason labels why a breaker changed state.
type Reason string

const (
	// ReasonThresholdExceeded: closed to open after the configured number of
	// consecutive failures.
	ReasonThresholdExceeded Reason = "threshold-exceeded"

	// ReasonRecoveryTimeout: open to half-open when a call claims the probe
	// after the recovery timeout elapsed.
	ReasonRecoveryTimeout Reason = "recovery-timeout"

	// ReasonProbeSucceeded: a probe succeeded but the breaker remains
	// half-open awaiting further probes. Emitted with from == to.
	ReasonProbeSucceeded Reason = "probe-succeeded"

	// ReasonProbeFailed: half-open back to open after a failed probe.
	ReasonProbeFailed Reason = "probe-failed"

	// ReasonFullyRecovered: half-open to closed after the configured number
	// of consecutive successful probes.
	ReasonFullyRecovered Reason = "fully-recovered"

	// ReasonManualReset: forced back to closed through Reset.
	ReasonManualReset Reason = "manual-reset"
)

// Listener receives transition notifications. Listeners run synchronously on
// the goroutine that triggered the transition and must not call back into the
// breaker. A panic in a listener is recovered and logged; it never affects
// the breaker's decision logic.
type Listener func(name string, from, to State, reason Reason)
