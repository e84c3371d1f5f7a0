// Package poller reconciles the job ledger with the scheduler. It is the
// only component that moves submitted jobs out of PENDING/RUNNING.
package poller

import (
	"context"
	"sync"
	"time"

	"fold-portal/core/models"
	"fold-portal/core/slurm"

	"github.com/sirupsen/logrus"
)

// staleJobMessage is recorded on jobs the scheduler has no trace of past
// the staleness threshold.
const staleJobMessage = "Job not found in SLURM. It may have failed before being scheduled, or SLURM lost track of it."

// Store is the ledger access the poller needs.
type Store interface {
	ListActiveJobs() ([]*models.Job, error)
	UpdateJobStatus(id string, status models.JobStatus, completedAt *time.Time) error
	MarkFailed(id, message string, at time.Time) error
}

// Poller drives the reconciliation loop.
type Poller struct {
	store     Store
	scheduler slurm.Client
	interval  time.Duration
	staleAge  time.Duration
	workers   int
	now       func() time.Time
	log       *logrus.Entry
}

// New creates a poller. staleAge bounds how long a job may sit with no
// scheduler record before it is failed as lost.
func New(store Store, scheduler slurm.Client, interval, staleAge time.Duration) *Poller {
	return &Poller{
		store:     store,
		scheduler: scheduler,
		interval:  interval,
		staleAge:  staleAge,
		workers:   8,
		now:       time.Now,
		log:       logrus.WithField("component", "poller"),
	}
}

// Run polls on the configured interval until ctx is cancelled. An
// immediate first pass runs before the ticker settles in.
func (p *Poller) Run(ctx context.Context) {
	p.log.WithField("interval", p.interval).Info("poller started")

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one reconciliation pass over all submitted active jobs.
// Jobs are checked concurrently with a bounded worker pool; each job's
// outcome is independent, one failure never aborts the pass.
func (p *Poller) Poll(ctx context.Context) {
	jobs, err := p.store.ListActiveJobs()
	if err != nil {
		p.log.WithError(err).Error("failed to list active jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job *models.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			p.reconcile(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (p *Poller) reconcile(ctx context.Context, job *models.Job) {
	status := p.scheduler.CheckStatus(ctx, job.SlurmJobID)

	if status == models.JobStatusUnknown {
		p.handleUnknown(job)
		return
	}
	if status == job.Status {
		return
	}

	var completedAt *time.Time
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		now := p.now().UTC()
		completedAt = &now
	}
	if err := p.store.UpdateJobStatus(job.ID, status, completedAt); err != nil {
		p.log.WithField("job_id", job.ID).WithError(err).Error("failed to update job status")
		return
	}

	p.log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"slurm_job_id": job.SlurmJobID,
		"from":         job.Status,
		"to":           status,
	}).Info("job status changed")
}

// handleUnknown covers jobs the scheduler has no record of. Fresh
// submissions may not be visible in squeue or sacct yet, so the job is
// only failed once it has been unaccounted for past the staleness age.
func (p *Poller) handleUnknown(job *models.Job) {
	submittedAt := job.CreatedAt
	if job.SubmittedAt != nil {
		submittedAt = *job.SubmittedAt
	}
	if p.now().Sub(submittedAt) < p.staleAge {
		return
	}

	now := p.now().UTC()
	if err := p.store.MarkFailed(job.ID, staleJobMessage, now); err != nil {
		p.log.WithField("job_id", job.ID).WithError(err).Error("failed to mark stale job")
		return
	}
	p.log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"slurm_job_id": job.SlurmJobID,
	}).Warn("stale job failed")
}
