// Package admission gates job submission: maintenance mode, per-runner
// enablement, and per-user quota, evaluated in that fixed order so the
// first applicable failure is the one reported.
package admission

import (
	"fmt"
	"time"

	"fold-portal/core/models"
)

// Error reports a rejected submission with a user-facing reason. It is
// recoverable and implies no retry.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func rejectf(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// IsAdmissionError reports whether err is an *Error.
func IsAdmissionError(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// ConsoleStore provides the settings the controller reads.
type ConsoleStore interface {
	GetSiteSettings() (*models.SiteSettings, error)
	GetRunnerConfig(runnerKey string) (*models.RunnerConfig, error)
	GetUserQuota(userID string) (*models.UserQuota, error)
}

// JobCounter provides the job counts quota checks evaluate.
type JobCounter interface {
	CountJobsByStatus(ownerID string, status models.JobStatus) (int, error)
	CountJobsCreatedSince(ownerID string, since time.Time) (int, error)
}

// Controller evaluates all admission checks before a job record is created.
type Controller struct {
	console ConsoleStore
	jobs    JobCounter
	now     func() time.Time
}

// NewController creates an admission controller.
func NewController(console ConsoleStore, jobs JobCounter) *Controller {
	return &Controller{console: console, jobs: jobs, now: time.Now}
}

// Check runs the admission sequence for a submission. A nil return means
// the submission may proceed; an *Error carries the reason it may not.
// Checks run in a fixed order: maintenance, runner enablement, then the
// quota block — a disabled account is never told it is over quota.
func (c *Controller) Check(owner models.User, runnerKey string) error {
	settings, err := c.console.GetSiteSettings()
	if err != nil {
		return err
	}
	if settings.MaintenanceMode {
		return &Error{Reason: settings.MaintenanceMessage}
	}

	cfg, err := c.console.GetRunnerConfig(runnerKey)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		reason := cfg.DisabledReason
		if reason == "" {
			reason = "This runner is temporarily unavailable."
		}
		return rejectf("Runner is disabled: %s", reason)
	}

	// Staff accounts are exempt from the quota block only.
	if owner.IsStaff {
		return nil
	}

	quota, err := c.console.GetUserQuota(owner.ID)
	if err != nil {
		return err
	}

	if quota.IsDisabled {
		reason := quota.DisabledReason
		if reason == "" {
			reason = "Account is disabled"
		}
		return rejectf("Your account has been disabled: %s", reason)
	}

	running, err := c.jobs.CountJobsByStatus(owner.ID, models.JobStatusRunning)
	if err != nil {
		return err
	}
	if running >= quota.MaxConcurrentJobs {
		return rejectf(
			"You have reached the maximum number of concurrent jobs (%d). Please wait for a job to complete.",
			quota.MaxConcurrentJobs)
	}

	pending, err := c.jobs.CountJobsByStatus(owner.ID, models.JobStatusPending)
	if err != nil {
		return err
	}
	if pending >= quota.MaxQueuedJobs {
		return rejectf(
			"You have reached the maximum number of queued jobs (%d). Please wait for some jobs to start running.",
			quota.MaxQueuedJobs)
	}

	now := c.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := c.jobs.CountJobsCreatedSince(owner.ID, todayStart)
	if err != nil {
		return err
	}
	if today >= quota.JobsPerDay {
		return rejectf(
			"You have reached the maximum number of jobs per day (%d). Please try again tomorrow.",
			quota.JobsPerDay)
	}

	return nil
}
