package slurm

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fold-portal/core/models"

	"github.com/spf13/afero"
)

const (
	fakeIDPrefix    = "FAKE-"
	startedAtMarker = ".fake_slurm_started_at"
	canceledMarker  = ".fake_slurm_canceled"

	// A simulated job is PENDING for the first window after submission,
	// RUNNING until the second, COMPLETED thereafter.
	fakePendingWindow = 5 * time.Second
	fakeRunningWindow = 15 * time.Second
)

// SimulatedClient is a clock-driven scheduler for offline and test
// environments. It produces the exact state-machine transitions the live
// client would, so the lifecycle poller needs no mode-specific logic.
type SimulatedClient struct {
	fs      afero.Fs
	baseDir string
	now     func() time.Time
}

// NewSimulatedClient creates a simulated scheduler rooted at the shared job
// base directory.
func NewSimulatedClient(fs afero.Fs, baseDir string) *SimulatedClient {
	return &SimulatedClient{fs: fs, baseDir: baseDir, now: time.Now}
}

// Submit derives a synthetic job id from the workdir name (the job UUID)
// and records the submission timestamp in the workdir.
func (c *SimulatedClient) Submit(_ context.Context, _ string, workdir string) (string, error) {
	if err := c.fs.MkdirAll(workdir, 0o755); err != nil {
		return "", schedulerErrorf("create workdir: %v", err)
	}

	stamp := strconv.FormatInt(c.now().Unix(), 10)
	if err := afero.WriteFile(c.fs, filepath.Join(workdir, startedAtMarker), []byte(stamp), 0o644); err != nil {
		return "", schedulerErrorf("write start marker: %v", err)
	}
	if err := c.fs.MkdirAll(filepath.Join(workdir, "output"), 0o755); err != nil {
		return "", schedulerErrorf("create output dir: %v", err)
	}

	return fakeIDPrefix + filepath.Base(workdir), nil
}

// CheckStatus computes job state purely from elapsed time since submission,
// unless a cancel marker forces FAILED.
func (c *SimulatedClient) CheckStatus(_ context.Context, slurmJobID string) models.JobStatus {
	workdir := c.workdirFor(slurmJobID)

	if ok, _ := afero.Exists(c.fs, filepath.Join(workdir, canceledMarker)); ok {
		return models.JobStatusFailed
	}

	raw, err := afero.ReadFile(c.fs, filepath.Join(workdir, startedAtMarker))
	if err != nil {
		return models.JobStatusUnknown
	}
	startedAt, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return models.JobStatusUnknown
	}

	elapsed := c.now().Sub(time.Unix(startedAt, 0))
	switch {
	case elapsed < fakePendingWindow:
		return models.JobStatusPending
	case elapsed < fakeRunningWindow:
		return models.JobStatusRunning
	}

	// Completed: materialize a placeholder result once.
	outdir := filepath.Join(workdir, "output")
	_ = c.fs.MkdirAll(outdir, 0o755)
	resultPath := filepath.Join(outdir, "results.txt")
	if ok, _ := afero.Exists(c.fs, resultPath); !ok {
		_ = afero.WriteFile(c.fs, resultPath, []byte("Simulated run completed successfully.\n"), 0o644)
	}
	return models.JobStatusCompleted
}

// Cancel drops a cancel marker in the workdir; subsequent status queries
// report FAILED.
func (c *SimulatedClient) Cancel(_ context.Context, slurmJobID string) {
	workdir := c.workdirFor(slurmJobID)
	_ = c.fs.MkdirAll(workdir, 0o755)
	stamp := fmt.Sprintf("%d", c.now().Unix())
	_ = afero.WriteFile(c.fs, filepath.Join(workdir, canceledMarker), []byte(stamp), 0o644)
}

func (c *SimulatedClient) workdirFor(slurmJobID string) string {
	jobID := strings.TrimPrefix(slurmJobID, fakeIDPrefix)
	return filepath.Join(c.baseDir, jobID)
}
