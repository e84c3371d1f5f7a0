package models

import (
	"path/filepath"
	"time"
)

// Job represents a computational job submitted to the cluster.
type Job struct {
	ID      string
	OwnerID string
	Name    string

	// Workload is the workload-type key the submission came in through
	// (e.g. "boltz2"); Runner is the compute backend it resolved to
	// (e.g. "boltz-2").
	Workload string
	Runner   string

	Status JobStatus

	// Sequences holds free-form FASTA text; empty for workloads that take
	// structure files instead.
	Sequences string
	Params    map[string]interface{}

	// InputPayload is the normalized submission snapshot. Binary file
	// contents are never stored here, only filenames.
	InputPayload StoredPayload

	SlurmJobID   string
	ErrorMessage string

	CreatedAt   time.Time
	SubmittedAt *time.Time
	CompletedAt *time.Time

	HiddenFromOwner bool
}

// Workdir returns the job's working directory under the given base path.
// The path is always derived from the job ID and never stored.
func (j *Job) Workdir(base string) string {
	return filepath.Join(base, j.ID)
}

// IsTerminal reports whether the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"

	// JobStatusUnknown is only ever returned by scheduler status queries;
	// it is never persisted on a job.
	JobStatusUnknown JobStatus = "UNKNOWN"
)

// User is the owner reference the core operates on. Authentication and
// account management live outside the core; callers pass this in.
type User struct {
	ID       string
	Username string
	IsStaff  bool
}
