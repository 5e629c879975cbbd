package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyProbe(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sched := DefaultProbeSchedule()

	tests := []struct {
		name      string
		online    bool
		idle      time.Duration
		wantState ProbeState
		wantDelay time.Duration
	}{
		{"offline retries every second", false, 0, ProbeOffline, time.Second},
		{"offline ignores activity", false, time.Hour, ProbeOffline, time.Second},
		{"online and active rechecks", true, 5 * time.Second, ProbeOnline, 10 * time.Second},
		{"online 59s idle still active (boundary)", true, 59 * time.Second, ProbeOnline, 10 * time.Second},
		{"online 60s idle pauses (boundary)", true, 60 * time.Second, ProbeIdle, 0},
		{"online without any activity pauses", true, -1, ProbeIdle, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var last time.Time
			if tt.idle >= 0 {
				last = now.Add(-tt.idle)
			}
			state, delay := sched.classifyProbe(tt.online, last, now)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}

func TestDefaultProbeSchedule(t *testing.T) {
	s := DefaultProbeSchedule()
	assert.Equal(t, 50*time.Millisecond, s.Initial)
	assert.Equal(t, 4*time.Second, s.Timeout)
	assert.Equal(t, time.Minute, s.IdleAfter)
}

func TestProbeStateString(t *testing.T) {
	tests := []struct {
		state ProbeState
		want  string
	}{
		{ProbeStarting, "starting"},
		{ProbeOffline, "offline"},
		{ProbeOnline, "online"},
		{ProbeIdle, "idle"},
		{ProbeState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
