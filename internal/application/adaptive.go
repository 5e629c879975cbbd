package application

import "time"

// ProbeState classifies the backend connection as seen by the health probe.
type ProbeState int

const (
	// ProbeStarting is the state before the first check completes.
	ProbeStarting ProbeState = iota
	// ProbeOffline means the last check failed. Rechecks every second.
	ProbeOffline
	// ProbeOnline means the backend answered and the user was recently
	// active. Rechecks every 10 seconds.
	ProbeOnline
	// ProbeIdle means the backend answered but nobody has interacted for a
	// minute. Checks pause until the next interaction.
	ProbeIdle
)

// Default probe timings.
const (
	probeInitialDelay  = 50 * time.Millisecond
	probeOfflineRetry  = 1 * time.Second
	probeActiveRecheck = 10 * time.Second
	probeIdleAfter     = 60 * time.Second
	probeTimeout       = 4 * time.Second
)

// String returns a human-readable name for the probe state.
func (s ProbeState) String() string {
	switch s {
	case ProbeStarting:
		return "starting"
	case ProbeOffline:
		return "offline"
	case ProbeOnline:
		return "online"
	case ProbeIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// ProbeSchedule holds the adaptive health-check timings.
type ProbeSchedule struct {
	Initial       time.Duration
	OfflineRetry  time.Duration
	ActiveRecheck time.Duration
	IdleAfter     time.Duration
	Timeout       time.Duration
}

// DefaultProbeSchedule returns the standard timings.
func DefaultProbeSchedule() ProbeSchedule {
	return ProbeSchedule{
		Initial:       probeInitialDelay,
		OfflineRetry:  probeOfflineRetry,
		ActiveRecheck: probeActiveRecheck,
		IdleAfter:     probeIdleAfter,
		Timeout:       probeTimeout,
	}
}

// classifyProbe determines the state after a check and the delay before the
// next one. A zero delay means checks pause until the next interaction. A
// zero lastActivity counts as idle.
func (s ProbeSchedule) classifyProbe(online bool, lastActivity, now time.Time) (ProbeState, time.Duration) {
	if !online {
		return ProbeOffline, s.OfflineRetry
	}
	if !lastActivity.IsZero() && now.Sub(lastActivity) < s.IdleAfter {
		return ProbeOnline, s.ActiveRecheck
	}
	return ProbeIdle, 0
}
