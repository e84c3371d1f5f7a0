// Package slurm integrates with the external SLURM batch scheduler.
//
// Two implementations share the Client contract: a live mode that shells out
// to the scheduler CLI tools, and a simulated mode for offline and test
// environments that derives job state from wall-clock time. The rest of the
// core never branches on which mode is active.
package slurm

import (
	"context"
	"fmt"

	"fold-portal/core/models"
)

// Client submits, polls and cancels jobs against the batch scheduler.
type Client interface {
	// Submit hands a batch script to the scheduler and returns the
	// scheduler-assigned job id. Failures are reported as *SchedulerError.
	Submit(ctx context.Context, script string, workdir string) (string, error)

	// CheckStatus maps the scheduler's view of a job onto the portal's
	// lifecycle states. Jobs the scheduler cannot account for report
	// JobStatusUnknown.
	CheckStatus(ctx context.Context, slurmJobID string) models.JobStatus

	// Cancel asks the scheduler to cancel a job. Best effort: errors from
	// the scheduler are ignored.
	Cancel(ctx context.Context, slurmJobID string)
}

// SchedulerError reports a submit or parse failure against the scheduler.
// Submissions that fail this way have no partial state to reconcile; the
// job is marked FAILED immediately and never retried automatically.
type SchedulerError struct {
	Message string
}

func (e *SchedulerError) Error() string {
	return e.Message
}

func schedulerErrorf(format string, args ...interface{}) *SchedulerError {
	return &SchedulerError{Message: fmt.Sprintf(format, args...)}
}

// IsSchedulerError reports whether err is a *SchedulerError.
func IsSchedulerError(err error) bool {
	_, ok := err.(*SchedulerError)
	return ok
}

// ScriptFileName is the materialized script name in a job's workdir
// (live mode only).
const ScriptFileName = "job.sbatch"
