package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection and ensures the schema exists
func NewDB(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	d := &DB{DB: db}
	if err := d.migrate(); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	return d, nil
}

func (d *DB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id                UUID PRIMARY KEY,
			owner_id          TEXT NOT NULL,
			name              TEXT NOT NULL DEFAULT '',
			workload          TEXT NOT NULL DEFAULT '',
			runner            TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'PENDING',
			sequences         TEXT NOT NULL DEFAULT '',
			params            JSONB NOT NULL DEFAULT '{}',
			input_payload     JSONB NOT NULL DEFAULT '{}',
			slurm_job_id      TEXT NOT NULL DEFAULT '',
			error_message     TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL,
			submitted_at      TIMESTAMPTZ,
			completed_at      TIMESTAMPTZ,
			hidden_from_owner BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_owner_status ON jobs(owner_id, status);
		CREATE INDEX IF NOT EXISTS idx_jobs_active ON jobs(status) WHERE status IN ('PENDING', 'RUNNING');

		CREATE TABLE IF NOT EXISTS runner_configs (
			runner_key      TEXT PRIMARY KEY,
			enabled         BOOLEAN NOT NULL DEFAULT TRUE,
			disabled_reason TEXT NOT NULL DEFAULT '',
			partition       TEXT NOT NULL DEFAULT '',
			gpus            INTEGER NOT NULL DEFAULT 0,
			cpus            INTEGER NOT NULL DEFAULT 1,
			mem_gb          INTEGER NOT NULL DEFAULT 0,
			time_limit      TEXT NOT NULL DEFAULT '',
			image_uri       TEXT NOT NULL DEFAULT '',
			extra_env       JSONB NOT NULL DEFAULT '{}',
			extra_mounts    JSONB NOT NULL DEFAULT '[]',
			updated_at      TIMESTAMPTZ NOT NULL,
			updated_by      TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS user_quotas (
			user_id             TEXT PRIMARY KEY,
			max_concurrent_jobs INTEGER NOT NULL,
			max_queued_jobs     INTEGER NOT NULL,
			jobs_per_day        INTEGER NOT NULL,
			retention_days      INTEGER NOT NULL,
			is_disabled         BOOLEAN NOT NULL DEFAULT FALSE,
			disabled_reason     TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS site_settings (
			id                  INTEGER PRIMARY KEY,
			maintenance_mode    BOOLEAN NOT NULL DEFAULT FALSE,
			maintenance_message TEXT NOT NULL DEFAULT '',
			updated_at          TIMESTAMPTZ NOT NULL,
			updated_by          TEXT NOT NULL DEFAULT ''
		);
	`
	_, err := d.Exec(schema)
	return err
}
