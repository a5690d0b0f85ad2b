package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/boqcalc/internal/ir"
	"github.com/roach88/boqcalc/internal/store"
)

// tracker holds the counters of the running job of a session.
// Counters only move under mu, so published progress never goes backwards.
type tracker struct {
	mu      sync.Mutex
	job     ir.Job
	started bool
}

func (t *tracker) start(job ir.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job = job
	t.started = true
}

func (t *tracker) snapshot() (ir.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job, t.started
}

// advance counts one saved row and publishes the new counters while still
// holding the lock.
func (t *tracker) advance(publish func(ir.Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.CompletedRows++
	publish(t.job)
}

// finish moves the job to a terminal status.
func (t *tracker) finish(status ir.JobStatus, errMsg string) ir.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Status = status
	t.job.Error = errMsg
	return t.job
}

// publish writes progress to the job row and notifies the observer.
// Called with the tracker lock held, so the observer must not call back
// into the Engine.
func (e *Engine) publish(ctx context.Context, job ir.Job) {
	if err := e.store.UpdateJobProgress(ctx, job.CalculationID, job.CompletedRows); err != nil {
		slog.Warn("progress update failed",
			"session", job.SessionID,
			"calculation_id", job.CalculationID,
			"error", err,
		)
	}
	if e.onProgress != nil {
		e.onProgress(job)
	}
}

// Progress reports the calculation state of a session: the live job if one
// is running, otherwise the most recent persisted job. ok is false if the
// session has never been calculated.
func (e *Engine) Progress(ctx context.Context, sessionID string) (job ir.Job, ok bool, err error) {
	if t, live := e.liveTracker(sessionID); live {
		if job, started := t.snapshot(); started {
			return job, true, nil
		}
	}

	job, err = e.store.LatestJob(ctx, sessionID)
	if store.IsNotFound(err) {
		return ir.Job{}, false, nil
	}
	if err != nil {
		return ir.Job{}, false, fmt.Errorf("progress of session %s: %w", sessionID, err)
	}
	return job, true, nil
}
