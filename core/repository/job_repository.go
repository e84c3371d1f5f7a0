package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"fold-portal/core/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const jobColumns = `id, owner_id, name, workload, runner, status, sequences,
	params, input_payload, slurm_job_id, error_message,
	created_at, submitted_at, completed_at, hidden_from_owner`

// JobRepository handles database operations for jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob creates a new job in the database
func (r *JobRepository) CreateJob(job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	} else if _, err := uuid.Parse(job.ID); err != nil {
		return errors.Wrap(err, "invalid job id")
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(orEmptyMap(job.Params))
	if err != nil {
		return errors.Wrap(err, "marshal params")
	}
	payload, err := json.Marshal(job.InputPayload)
	if err != nil {
		return errors.Wrap(err, "marshal input payload")
	}

	query := `
		INSERT INTO jobs (
			id, owner_id, name, workload, runner, status, sequences,
			params, input_payload, slurm_job_id, error_message,
			created_at, hidden_from_owner
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(query,
		job.ID,
		job.OwnerID,
		job.Name,
		job.Workload,
		job.Runner,
		job.Status,
		job.Sequences,
		params,
		payload,
		job.SlurmJobID,
		job.ErrorMessage,
		job.CreatedAt,
		job.HiddenFromOwner,
	)
	return errors.Wrap(err, "insert job")
}

// GetJob retrieves a job by ID
func (r *JobRepository) GetJob(id string) (*models.Job, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get job")
	}
	return job, nil
}

// ListJobsByOwner lists an owner's jobs, newest first, excluding jobs hidden
// from the owner.
func (r *JobRepository) ListJobsByOwner(ownerID string) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE owner_id = $1 AND NOT hidden_from_owner
		ORDER BY created_at DESC`
	return r.queryJobs(query, ownerID)
}

// ListActiveJobs lists jobs the poller must reconcile: non-terminal jobs
// that have been handed to the scheduler.
func (r *JobRepository) ListActiveJobs() ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status IN ('PENDING', 'RUNNING') AND slurm_job_id <> ''
		ORDER BY created_at`
	return r.queryJobs(query)
}

// ListFinishedJobs lists terminal jobs with a completion timestamp, the
// candidate set for the retention sweep.
func (r *JobRepository) ListFinishedJobs() ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status IN ('COMPLETED', 'FAILED') AND completed_at IS NOT NULL
		ORDER BY completed_at`
	return r.queryJobs(query)
}

// ListAllJobs lists every job in the ledger. Used by the orphan scans.
func (r *JobRepository) ListAllJobs() ([]*models.Job, error) {
	return r.queryJobs(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at`)
}

// MarkSubmitted records the scheduler-assigned job id and the submission
// time together, preserving the submitted_at <=> slurm_job_id invariant.
func (r *JobRepository) MarkSubmitted(id, slurmJobID string, at time.Time) error {
	query := `UPDATE jobs SET slurm_job_id = $1, submitted_at = $2 WHERE id = $3`
	_, err := r.db.Exec(query, slurmJobID, at, id)
	return errors.Wrap(err, "mark submitted")
}

// UpdateJobStatus transitions a job's status. The guard on the current
// status makes terminal states sticky: a job already COMPLETED or FAILED is
// never transitioned again, so a concurrent cancel and poller write is a
// benign race.
func (r *JobRepository) UpdateJobStatus(id string, status models.JobStatus, completedAt *time.Time) error {
	query := `UPDATE jobs SET status = $1, completed_at = COALESCE($2, completed_at)
		WHERE id = $3 AND status IN ('PENDING', 'RUNNING')`
	_, err := r.db.Exec(query, status, completedAt, id)
	return errors.Wrap(err, "update job status")
}

// MarkFailed moves a non-terminal job to FAILED with the given message.
func (r *JobRepository) MarkFailed(id, message string, at time.Time) error {
	query := `UPDATE jobs SET status = 'FAILED', error_message = $1, completed_at = $2
		WHERE id = $3 AND status IN ('PENDING', 'RUNNING')`
	_, err := r.db.Exec(query, message, at, id)
	return errors.Wrap(err, "mark failed")
}

// SetHidden toggles the owner-facing visibility of a job.
func (r *JobRepository) SetHidden(id string, hidden bool) error {
	_, err := r.db.Exec(`UPDATE jobs SET hidden_from_owner = $1 WHERE id = $2`, hidden, id)
	return errors.Wrap(err, "set hidden")
}

// CountJobsByStatus counts an owner's jobs in the given status.
func (r *JobRepository) CountJobsByStatus(ownerID string, status models.JobStatus) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE owner_id = $1 AND status = $2`,
		ownerID, status,
	).Scan(&n)
	return n, errors.Wrap(err, "count jobs by status")
}

// CountJobsCreatedSince counts an owner's jobs created at or after the
// given time.
func (r *JobRepository) CountJobsCreatedSince(ownerID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE owner_id = $1 AND created_at >= $2`,
		ownerID, since,
	).Scan(&n)
	return n, errors.Wrap(err, "count jobs created since")
}

func (r *JobRepository) queryJobs(query string, args ...interface{}) ([]*models.Job, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Wrap(rows.Err(), "iterate jobs")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job         models.Job
		params      []byte
		payload     []byte
		submittedAt sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Name,
		&job.Workload,
		&job.Runner,
		&job.Status,
		&job.Sequences,
		&params,
		&payload,
		&job.SlurmJobID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&submittedAt,
		&completedAt,
		&job.HiddenFromOwner,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, errors.Wrap(err, "unmarshal params")
	}
	if err := json.Unmarshal(payload, &job.InputPayload); err != nil {
		return nil, errors.Wrap(err, "unmarshal input payload")
	}
	if submittedAt.Valid {
		job.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

func orEmptyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
