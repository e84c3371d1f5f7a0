package models

import (
	"fmt"
	"strings"
	"time"
)

// RunnerConfig holds per-runner SLURM resource and container configuration.
// Absence of a persisted row is equivalent to the zero value with Enabled
// true: script building must never fail just because no row exists yet.
type RunnerConfig struct {
	RunnerKey      string
	Enabled        bool
	DisabledReason string

	// SLURM resource configuration. Zero / empty means "omit the directive
	// and take the cluster default".
	Partition string
	GPUs      int
	CPUs      int
	MemGB     int
	TimeLimit string

	// Container configuration.
	ImageURI    string
	ExtraEnv    map[string]string
	ExtraMounts []Mount

	UpdatedAt time.Time
	UpdatedBy string
}

// Mount is an additional bind mount passed to the container runtime.
type Mount struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DefaultRunnerConfig returns the config used when no row exists for a key.
func DefaultRunnerConfig(runnerKey string) *RunnerConfig {
	return &RunnerConfig{RunnerKey: runnerKey, Enabled: true, CPUs: 1}
}

// SlurmDirectives generates #SBATCH directive lines from the resource
// config. A zero GPU count emits no GPU request; memory and time limit are
// likewise omitted when unset.
func (c *RunnerConfig) SlurmDirectives() string {
	var lines []string
	if c.Partition != "" {
		lines = append(lines, fmt.Sprintf("#SBATCH --partition=%s", c.Partition))
	}
	if c.GPUs > 0 {
		lines = append(lines, fmt.Sprintf("#SBATCH --gres=gpu:%d", c.GPUs))
	}
	if c.CPUs > 1 {
		lines = append(lines, fmt.Sprintf("#SBATCH --cpus-per-task=%d", c.CPUs))
	}
	if c.MemGB > 0 {
		lines = append(lines, fmt.Sprintf("#SBATCH --mem=%dG", c.MemGB))
	}
	if c.TimeLimit != "" {
		lines = append(lines, fmt.Sprintf("#SBATCH --time=%s", c.TimeLimit))
	}
	return strings.Join(lines, "\n")
}

// UserQuota holds per-user admission limits. Rows are written only when an
// administrator changes a value; reads fall back to configured defaults.
type UserQuota struct {
	UserID string

	MaxConcurrentJobs int
	MaxQueuedJobs     int
	JobsPerDay        int

	// RetentionDays is how long finished job workdirs are kept. 0 = never
	// delete.
	RetentionDays int

	IsDisabled     bool
	DisabledReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SiteSettings is the singleton site-wide settings record. Writes always
// force the fixed primary key so only one row can ever exist.
type SiteSettings struct {
	MaintenanceMode    bool
	MaintenanceMessage string
	UpdatedAt          time.Time
	UpdatedBy          string
}

// DefaultMaintenanceMessage is used when maintenance mode is on and no
// custom message has been configured.
const DefaultMaintenanceMessage = "System is under maintenance. Please try again later."
