package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BackendStatus is the latest health probe observation.
type BackendStatus struct {
	State     ProbeState
	Online    bool
	Provider  string
	BaseURL   string
	CheckedAt time.Time
	Error     string
}

// HealthProbe watches backend reachability with an activity-aware schedule:
// fast retries while offline, slower rechecks while the user is active, and
// no traffic at all once the user goes idle.
type HealthProbe struct {
	backends *BackendProvider
	schedule ProbeSchedule
	now      func() time.Time
	onChange func(BackendStatus)

	mu           sync.RWMutex
	status       BackendStatus
	lastActivity time.Time

	wake chan struct{}
}

// ProbeOption configures a HealthProbe.
type ProbeOption func(*HealthProbe)

// WithProbeSchedule overrides the probe timings.
func WithProbeSchedule(s ProbeSchedule) ProbeOption {
	return func(p *HealthProbe) { p.schedule = s }
}

// WithProbeClock overrides the time source.
func WithProbeClock(now func() time.Time) ProbeOption {
	return func(p *HealthProbe) { p.now = now }
}

// OnStatusChange registers a callback invoked when online/offline flips or
// the reported provider changes.
func OnStatusChange(fn func(BackendStatus)) ProbeOption {
	return func(p *HealthProbe) { p.onChange = fn }
}

// NewHealthProbe creates a probe for the provider's current backend.
// Construction counts as activity, so the probe stays active for one idle
// window after startup.
func NewHealthProbe(backends *BackendProvider, opts ...ProbeOption) *HealthProbe {
	p := &HealthProbe{
		backends: backends,
		schedule: DefaultProbeSchedule(),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastActivity = p.now()
	return p
}

// Status returns the latest observation.
func (p *HealthProbe) Status() BackendStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Touch records user activity. A paused probe resumes with an immediate
// check.
func (p *HealthProbe) Touch() {
	p.mu.Lock()
	p.lastActivity = p.now()
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Check queries the backend once, bounded by the schedule timeout, and
// records the result.
func (p *HealthProbe) Check(ctx context.Context) BackendStatus {
	backend := p.backends.Get()
	ctx, cancel := context.WithTimeout(ctx, p.schedule.Timeout)
	defer cancel()

	health, err := backend.Health(ctx)

	p.mu.Lock()
	prev := p.status
	next := BackendStatus{
		Online:    err == nil,
		Provider:  health.Provider,
		BaseURL:   backend.BaseURL(),
		CheckedAt: p.now(),
	}
	if err != nil {
		next.Error = err.Error()
	}
	next.State, _ = p.schedule.classifyProbe(next.Online, p.lastActivity, next.CheckedAt)
	p.status = next
	p.mu.Unlock()

	if prev.State == ProbeStarting || prev.Online != next.Online || prev.Provider != next.Provider {
		if next.Online {
			slog.Info("backend online", "base_url", next.BaseURL, "provider", next.Provider)
		} else {
			slog.Warn("backend offline", "base_url", next.BaseURL, "error", err)
		}
		if p.onChange != nil {
			p.onChange(next)
		}
	}
	return next
}

// Run drives the probe until ctx is canceled. The first check fires after
// the initial delay; later delays follow the schedule.
func (p *HealthProbe) Run(ctx context.Context) error {
	timer := time.NewTimer(p.schedule.Initial)
	defer timer.Stop()
	paused := false

	for {
		select {
		case <-ctx.Done():
			slog.Info("health probe stopped")
			return nil
		case <-timer.C:
			paused = !p.checkAndReschedule(ctx, timer)
		case <-p.wake:
			if paused {
				paused = !p.checkAndReschedule(ctx, timer)
			}
		}
	}
}

// checkAndReschedule runs a check and arms timer for the next one. It
// reports false when the schedule says to pause.
func (p *HealthProbe) checkAndReschedule(ctx context.Context, timer *time.Timer) bool {
	st := p.Check(ctx)

	p.mu.RLock()
	last := p.lastActivity
	p.mu.RUnlock()

	_, delay := p.schedule.classifyProbe(st.Online, last, st.CheckedAt)
	if delay == 0 {
		return false
	}
	timer.Reset(delay)
	return true
}
