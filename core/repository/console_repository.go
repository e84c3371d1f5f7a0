package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"fold-portal/core/models"

	"github.com/pkg/errors"
)

// QuotaDefaults are the values applied when a user has no quota row.
type QuotaDefaults struct {
	MaxConcurrentJobs int
	MaxQueuedJobs     int
	JobsPerDay        int
	RetentionDays     int
}

// ConsoleRepository handles runner configs, user quotas and site settings.
//
// Reads never write: absent rows resolve to defaults in memory, and a row is
// only persisted when an administrator actually changes something.
type ConsoleRepository struct {
	db       *DB
	defaults QuotaDefaults
}

// NewConsoleRepository creates a new console repository
func NewConsoleRepository(db *DB, defaults QuotaDefaults) *ConsoleRepository {
	return &ConsoleRepository{db: db, defaults: defaults}
}

// GetRunnerConfig returns the configuration for a runner key, or the
// all-default config when no row exists.
func (r *ConsoleRepository) GetRunnerConfig(runnerKey string) (*models.RunnerConfig, error) {
	row := r.db.QueryRow(`
		SELECT runner_key, enabled, disabled_reason, partition, gpus, cpus,
			mem_gb, time_limit, image_uri, extra_env, extra_mounts, updated_at, updated_by
		FROM runner_configs WHERE runner_key = $1`, runnerKey)

	var (
		cfg    models.RunnerConfig
		env    []byte
		mounts []byte
	)
	err := row.Scan(
		&cfg.RunnerKey, &cfg.Enabled, &cfg.DisabledReason, &cfg.Partition,
		&cfg.GPUs, &cfg.CPUs, &cfg.MemGB, &cfg.TimeLimit, &cfg.ImageURI,
		&env, &mounts, &cfg.UpdatedAt, &cfg.UpdatedBy,
	)
	if err == sql.ErrNoRows {
		return models.DefaultRunnerConfig(runnerKey), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get runner config")
	}

	if err := json.Unmarshal(env, &cfg.ExtraEnv); err != nil {
		return nil, errors.Wrap(err, "unmarshal extra env")
	}
	if err := json.Unmarshal(mounts, &cfg.ExtraMounts); err != nil {
		return nil, errors.Wrap(err, "unmarshal extra mounts")
	}
	return &cfg, nil
}

// UpsertRunnerConfig persists an administrator's runner configuration.
func (r *ConsoleRepository) UpsertRunnerConfig(cfg *models.RunnerConfig) error {
	env, err := json.Marshal(orEmptyEnv(cfg.ExtraEnv))
	if err != nil {
		return errors.Wrap(err, "marshal extra env")
	}
	mounts, err := json.Marshal(orEmptyMounts(cfg.ExtraMounts))
	if err != nil {
		return errors.Wrap(err, "marshal extra mounts")
	}

	query := `
		INSERT INTO runner_configs (
			runner_key, enabled, disabled_reason, partition, gpus, cpus,
			mem_gb, time_limit, image_uri, extra_env, extra_mounts, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (runner_key) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			disabled_reason = EXCLUDED.disabled_reason,
			partition = EXCLUDED.partition,
			gpus = EXCLUDED.gpus,
			cpus = EXCLUDED.cpus,
			mem_gb = EXCLUDED.mem_gb,
			time_limit = EXCLUDED.time_limit,
			image_uri = EXCLUDED.image_uri,
			extra_env = EXCLUDED.extra_env,
			extra_mounts = EXCLUDED.extra_mounts,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`
	_, err = r.db.Exec(query,
		cfg.RunnerKey, cfg.Enabled, cfg.DisabledReason, cfg.Partition,
		cfg.GPUs, cfg.CPUs, cfg.MemGB, cfg.TimeLimit, cfg.ImageURI,
		env, mounts, time.Now().UTC(), cfg.UpdatedBy,
	)
	return errors.Wrap(err, "upsert runner config")
}

// GetUserQuota returns a user's quota, or the configured defaults when no
// row exists.
func (r *ConsoleRepository) GetUserQuota(userID string) (*models.UserQuota, error) {
	row := r.db.QueryRow(`
		SELECT user_id, max_concurrent_jobs, max_queued_jobs, jobs_per_day,
			retention_days, is_disabled, disabled_reason, created_at, updated_at
		FROM user_quotas WHERE user_id = $1`, userID)

	var q models.UserQuota
	err := row.Scan(
		&q.UserID, &q.MaxConcurrentJobs, &q.MaxQueuedJobs, &q.JobsPerDay,
		&q.RetentionDays, &q.IsDisabled, &q.DisabledReason, &q.CreatedAt, &q.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &models.UserQuota{
			UserID:            userID,
			MaxConcurrentJobs: r.defaults.MaxConcurrentJobs,
			MaxQueuedJobs:     r.defaults.MaxQueuedJobs,
			JobsPerDay:        r.defaults.JobsPerDay,
			RetentionDays:     r.defaults.RetentionDays,
		}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user quota")
	}
	return &q, nil
}

// UpsertUserQuota persists an administrator's quota change for a user.
func (r *ConsoleRepository) UpsertUserQuota(q *models.UserQuota) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO user_quotas (
			user_id, max_concurrent_jobs, max_queued_jobs, jobs_per_day,
			retention_days, is_disabled, disabled_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			max_concurrent_jobs = EXCLUDED.max_concurrent_jobs,
			max_queued_jobs = EXCLUDED.max_queued_jobs,
			jobs_per_day = EXCLUDED.jobs_per_day,
			retention_days = EXCLUDED.retention_days,
			is_disabled = EXCLUDED.is_disabled,
			disabled_reason = EXCLUDED.disabled_reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(query,
		q.UserID, q.MaxConcurrentJobs, q.MaxQueuedJobs, q.JobsPerDay,
		q.RetentionDays, q.IsDisabled, q.DisabledReason, now,
	)
	return errors.Wrap(err, "upsert user quota")
}

// GetSiteSettings returns the singleton site settings, or defaults when the
// row has never been written.
func (r *ConsoleRepository) GetSiteSettings() (*models.SiteSettings, error) {
	row := r.db.QueryRow(`
		SELECT maintenance_mode, maintenance_message, updated_at, updated_by
		FROM site_settings WHERE id = 1`)

	var s models.SiteSettings
	err := row.Scan(&s.MaintenanceMode, &s.MaintenanceMessage, &s.UpdatedAt, &s.UpdatedBy)
	if err == sql.ErrNoRows {
		return &models.SiteSettings{MaintenanceMessage: models.DefaultMaintenanceMessage}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get site settings")
	}
	if s.MaintenanceMessage == "" {
		s.MaintenanceMessage = models.DefaultMaintenanceMessage
	}
	return &s, nil
}

// SetSiteSettings writes the singleton site settings row. The primary key
// is forced to 1 so a second row can never appear.
func (r *ConsoleRepository) SetSiteSettings(s *models.SiteSettings) error {
	query := `
		INSERT INTO site_settings (id, maintenance_mode, maintenance_message, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			maintenance_mode = EXCLUDED.maintenance_mode,
			maintenance_message = EXCLUDED.maintenance_message,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`
	_, err := r.db.Exec(query, s.MaintenanceMode, s.MaintenanceMessage, time.Now().UTC(), s.UpdatedBy)
	return errors.Wrap(err, "set site settings")
}

func orEmptyEnv(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyMounts(m []models.Mount) []models.Mount {
	if m == nil {
		return []models.Mount{}
	}
	return m
}
