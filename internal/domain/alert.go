package domain

import "time"

// AlertPhase is the lifecycle phase of a (user, category) alert stream.
type AlertPhase string

const (
	PhaseQuiet      AlertPhase = "QUIET"
	PhaseActive     AlertPhase = "ACTIVE"
	PhaseSuppressed AlertPhase = "SUPPRESSED"
)

// DefaultAlertCooldown is the fatigue-control window: repeats within it are
// suppressed and a decay to QUIET requires staying below HIGH for its full
// length.
const DefaultAlertCooldown = 4 * time.Hour

// AlertState is the persisted per-(user, category) alert record. Version is
// managed by the store for optimistic concurrency; transition functions
// leave it untouched.
type AlertState struct {
	Phase        AlertPhase `json:"phase"`
	LastSeverity RiskLevel  `json:"last_severity"`
	LastFiredAt  time.Time  `json:"last_fired_at"`
	// BelowSince marks when severity last dropped below HIGH while the
	// stream was ACTIVE or SUPPRESSED. Cleared whenever severity is HIGH+.
	BelowSince time.Time `json:"below_since,omitzero"`
	Version    int64     `json:"version"`
}

// Alert is one fired notification.
type Alert struct {
	ID       string    `json:"id"`
	Category Category  `json:"category"`
	Severity RiskLevel `json:"severity"`
	FiredAt  time.Time `json:"firedAt"`
}

// AlertTransition is the outcome of one evaluation against the state
// machine: the next state to persist, and whether an alert fires. At most
// one firing per evaluation.
type AlertTransition struct {
	State AlertState
	Fired bool
}

// NextAlertState advances the per-category alert state machine. Pure:
// persistence of the returned state is the caller's responsibility.
//
// Rules:
//   - severity ≥ HIGH fires (→ ACTIVE) unless an alert already fired within
//     the cooldown window at the same or higher severity, in which case the
//     stream is SUPPRESSED.
//   - a strict severity increase over the last fired alert is an escalation
//     and fires immediately, overriding any suppression.
//   - severity below HIGH returns the stream to QUIET only after it has
//     stayed below HIGH for a full cooldown period.
func NextAlertState(prev AlertState, level RiskLevel, now time.Time, cooldown time.Duration) AlertTransition {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	next := prev
	if next.Phase == "" {
		next.Phase = PhaseQuiet
	}

	if level >= RiskHigh {
		next.BelowSince = time.Time{}

		escalation := !prev.LastFiredAt.IsZero() && level > prev.LastSeverity
		inCooldown := !prev.LastFiredAt.IsZero() && now.Sub(prev.LastFiredAt) < cooldown
		if escalation || !inCooldown {
			next.Phase = PhaseActive
			next.LastSeverity = level
			next.LastFiredAt = now
			return AlertTransition{State: next, Fired: true}
		}

		next.Phase = PhaseSuppressed
		return AlertTransition{State: next, Fired: false}
	}

	if next.Phase == PhaseQuiet {
		return AlertTransition{State: next, Fired: false}
	}

	if next.BelowSince.IsZero() {
		next.BelowSince = now
		return AlertTransition{State: next, Fired: false}
	}

	if now.Sub(next.BelowSince) >= cooldown {
		// Full cooldown below HIGH: reset the stream so the next HIGH fires
		// fresh.
		return AlertTransition{State: AlertState{Phase: PhaseQuiet, Version: prev.Version}, Fired: false}
	}

	return AlertTransition{State: next, Fired: false}
}
