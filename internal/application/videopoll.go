package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Video polling defaults: 120 attempts at 5s, ten minutes in total.
const (
	DefaultVideoPollInterval = 5 * time.Second
	DefaultVideoPollAttempts = 120
)

// VideoProgress is reported after every status attempt.
type VideoProgress struct {
	Job     model.VideoJob
	Elapsed time.Duration
	// Status is the backend-reported state, empty when the request failed.
	Status string
	// Response is the decoded status reply, nil when the request failed.
	Response *driven.GenerationResponse
}

// VideoPoller waits for an asynchronous video job to produce media.
type VideoPoller struct {
	interval time.Duration
	attempts int
	wait     func(ctx context.Context, d time.Duration) error
}

// NewVideoPoller creates a poller. Non-positive values fall back to the
// defaults.
func NewVideoPoller(interval time.Duration, attempts int) *VideoPoller {
	if interval <= 0 {
		interval = DefaultVideoPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultVideoPollAttempts
	}
	return &VideoPoller{interval: interval, attempts: attempts, wait: sleepContext}
}

// WithWait replaces the delay between attempts. Tests use it to poll without
// sleeping.
func (p *VideoPoller) WithWait(wait func(ctx context.Context, d time.Duration) error) *VideoPoller {
	p.wait = wait
	return p
}

// Attempts returns the attempt ceiling.
func (p *VideoPoller) Attempts() int { return p.attempts }

// MaxWait returns the total time Poll waits before giving up.
func (p *VideoPoller) MaxWait() time.Duration {
	return time.Duration(p.attempts) * p.interval
}

// Poll waits one interval before each attempt and queries the job status.
// Failed status requests are retried until the attempt ceiling; a "failed"
// job ends polling with an error; the first reply carrying media wins.
// Exhausting every attempt returns a *TimeoutError.
func (p *VideoPoller) Poll(
	ctx context.Context,
	backend driven.GenerationBackend,
	job model.VideoJob,
	observe func(VideoProgress),
) (driven.GenerationResponse, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.wait(ctx, p.interval); err != nil {
			return driven.GenerationResponse{}, err
		}
		job.Attempt = attempt
		progress := VideoProgress{Job: job, Elapsed: time.Duration(attempt) * p.interval}

		resp, err := backend.VideoStatus(ctx, job.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return driven.GenerationResponse{}, ctx.Err()
			}
			slog.Debug("video status request failed", "job_id", job.JobID, "attempt", attempt, "error", err)
			notify(observe, progress)
			continue
		}

		progress.Status = resp.Status
		if progress.Status == "" {
			progress.Status = "processing"
		}
		progress.Response = &resp
		notify(observe, progress)

		if resp.Status == "failed" {
			reason := resp.Text
			if reason == "" {
				reason = "unknown error"
			}
			return resp, fmt.Errorf("video generation failed: %s", reason)
		}
		if len(resp.MediaURLs) > 0 {
			return resp, nil
		}
	}

	return driven.GenerationResponse{}, &TimeoutError{
		JobID:  job.JobID,
		Waited: p.MaxWait(),
	}
}

func notify(observe func(VideoProgress), p VideoProgress) {
	if observe != nil {
		observe(p)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
