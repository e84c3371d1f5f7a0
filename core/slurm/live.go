package slurm

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"fold-portal/core/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var submittedJobRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// LiveClient talks to a real SLURM installation through its CLI tools
// (sbatch, squeue, sacct, scancel).
type LiveClient struct {
	fs            afero.Fs
	submitTimeout time.Duration
	log           *logrus.Entry
}

// NewLiveClient creates a live scheduler client. The submit timeout bounds
// the blocking sbatch call; hitting it is a hard failure, never retried,
// since retrying a submit risks double-submission.
func NewLiveClient(fs afero.Fs, submitTimeout time.Duration) *LiveClient {
	return &LiveClient{
		fs:            fs,
		submitTimeout: submitTimeout,
		log:           logrus.WithField("component", "slurm"),
	}
}

// Submit writes the script to workdir/job.sbatch, invokes sbatch, and
// parses the numeric job id from its stdout.
func (c *LiveClient) Submit(ctx context.Context, script string, workdir string) (string, error) {
	if err := c.fs.MkdirAll(workdir, 0o755); err != nil {
		return "", schedulerErrorf("create workdir: %v", err)
	}
	scriptPath := filepath.Join(workdir, ScriptFileName)
	if err := afero.WriteFile(c.fs, scriptPath, []byte(script), 0o644); err != nil {
		return "", schedulerErrorf("write script: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sbatch", scriptPath)
	cmd.Dir = workdir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", schedulerErrorf("sbatch timed out after %s", c.submitTimeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return "", schedulerErrorf("sbatch failed: %s (%v)", detail, err)
	}

	match := submittedJobRe.FindStringSubmatch(stdout.String())
	if match == nil {
		return "", schedulerErrorf("could not parse sbatch output: %s", strings.TrimSpace(stdout.String()))
	}

	c.log.WithFields(logrus.Fields{
		"slurm_job_id": match[1],
		"workdir":      workdir,
	}).Info("job submitted")
	return match[1], nil
}

// CheckStatus consults squeue for active jobs first, then falls back to
// sacct for terminal states.
func (c *LiveClient) CheckStatus(ctx context.Context, slurmJobID string) models.JobStatus {
	// Active jobs: squeue prints one state token per matching job.
	out, err := exec.CommandContext(ctx, "squeue", "-j", slurmJobID, "-h", "-o", "%T").Output()
	if err == nil {
		if state := strings.TrimSpace(string(out)); state != "" {
			return mapActiveState(state)
		}
	}

	// Historical jobs: sacct, allocation line only.
	out, err = exec.CommandContext(ctx, "sacct", "-j", slurmJobID, "-n", "-o", "State", "-X").Output()
	if err != nil {
		return models.JobStatusUnknown
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		state := strings.Fields(line)[0]
		// e.g. CANCELLED+ => CANCELLED
		state = strings.SplitN(state, "+", 2)[0]
		return mapTerminalState(state)
	}
	return models.JobStatusUnknown
}

// Cancel invokes scancel and ignores its exit code.
func (c *LiveClient) Cancel(ctx context.Context, slurmJobID string) {
	if err := exec.CommandContext(ctx, "scancel", slurmJobID).Run(); err != nil {
		c.log.WithField("slurm_job_id", slurmJobID).WithError(err).Warn("scancel failed")
	}
}

func mapActiveState(state string) models.JobStatus {
	switch state {
	case "PENDING", "CONFIGURING":
		return models.JobStatusPending
	case "RUNNING", "COMPLETING", "SUSPENDED":
		return models.JobStatusRunning
	}
	// Unrecognized active state: the job is still known to the scheduler,
	// treat it as running.
	return models.JobStatusRunning
}

func mapTerminalState(state string) models.JobStatus {
	switch state {
	case "COMPLETED":
		return models.JobStatusCompleted
	case "PENDING", "CONFIGURING":
		return models.JobStatusPending
	case "RUNNING", "COMPLETING":
		return models.JobStatusRunning
	case "CANCELLED", "FAILED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED":
		return models.JobStatusFailed
	}
	// Unrecognized terminal strings default to FAILED, never to a state
	// the poller would keep retrying.
	return models.JobStatusFailed
}
