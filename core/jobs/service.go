// Package jobs is the collaborator-facing surface of the orchestration
// core: submit, cancel, list, and output retrieval.
package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fold-portal/core/models"
	"fold-portal/core/runner"
	"fold-portal/core/slurm"
	"fold-portal/core/workload"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// MaxSequenceChars is a coarse upper bound on submitted sequence text.
const MaxSequenceChars = 200_000

// ErrOutputNotFound is returned when a requested output file does not
// exist, including the case where retention deleted it mid-read.
var ErrOutputNotFound = errors.New("output file not found")

// Store is the job-ledger persistence the service needs.
type Store interface {
	CreateJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	ListJobsByOwner(ownerID string) ([]*models.Job, error)
	MarkSubmitted(id, slurmJobID string, at time.Time) error
	MarkFailed(id, message string, at time.Time) error
}

// ConfigStore resolves runner configuration at script-build time.
type ConfigStore interface {
	GetRunnerConfig(runnerKey string) (*models.RunnerConfig, error)
}

// Admitter gates submissions before any record is created.
type Admitter interface {
	Check(owner models.User, runnerKey string) error
}

// Service wires the orchestration core together.
type Service struct {
	store     Store
	console   ConfigStore
	admission Admitter
	workloads *workload.Registry
	runners   *runner.Registry
	scheduler slurm.Client
	fs        afero.Fs
	baseDir   string
	log       *logrus.Entry
}

// NewService creates the job service.
func NewService(
	store Store,
	console ConfigStore,
	admission Admitter,
	workloads *workload.Registry,
	runners *runner.Registry,
	scheduler slurm.Client,
	fs afero.Fs,
	baseDir string,
) *Service {
	return &Service{
		store:     store,
		console:   console,
		admission: admission,
		workloads: workloads,
		runners:   runners,
		scheduler: scheduler,
		fs:        fs,
		baseDir:   baseDir,
		log:       logrus.WithField("component", "jobs"),
	}
}

// Submit normalizes the raw input through the named workload type, runs
// admission, creates the job record, materializes the workdir, and hands
// the built script to the scheduler.
//
// Errors are either *workload.ValidationError, *admission.Error,
// *slurm.SchedulerError, or an internal storage error. A scheduler failure
// leaves the job FAILED with the error recorded; nothing is retried.
func (s *Service) Submit(ctx context.Context, owner models.User, workloadKey, name string, input workload.Raw) (*models.Job, error) {
	wt, err := s.workloads.Get(workloadKey)
	if err != nil {
		return nil, err
	}

	runnerKey := wt.RunnerKey(input)
	rn, ok := s.runners.Get(runnerKey)
	if !ok {
		return nil, workload.NewValidationError("unknown runner: %s", runnerKey)
	}

	if err := s.admission.Check(owner, runnerKey); err != nil {
		return nil, err
	}

	if err := wt.Validate(input); err != nil {
		return nil, err
	}
	payload := wt.Normalize(input)

	sequences := strings.TrimSpace(payload.Sequences)
	if sequences == "" && len(payload.Files) == 0 && len(payload.Params) == 0 {
		return nil, workload.NewValidationError("No input provided.")
	}
	if len(sequences) > MaxSequenceChars {
		return nil, workload.NewValidationError("Sequences too large (>%d chars).", MaxSequenceChars)
	}

	if errs := rn.Validate(sequences, payload.Params); len(errs) > 0 {
		return nil, &workload.ValidationError{Messages: errs}
	}

	job := &models.Job{
		OwnerID:      owner.ID,
		Name:         strings.TrimSpace(name),
		Workload:     workloadKey,
		Runner:       runnerKey,
		Status:       models.JobStatusPending,
		Sequences:    sequences,
		Params:       payload.Params,
		InputPayload: payload.ForStorage(),
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	workdir := job.Workdir(s.baseDir)
	if err := workload.PrepareWorkdir(s.fs, wt, workdir, payload); err != nil {
		return nil, s.failSubmission(job, err)
	}

	cfg, err := s.console.GetRunnerConfig(runnerKey)
	if err != nil {
		return nil, s.failSubmission(job, err)
	}

	script := rn.BuildScript(job, cfg)
	slurmJobID, err := s.scheduler.Submit(ctx, script, workdir)
	if err != nil {
		return nil, s.failSubmission(job, err)
	}

	now := time.Now().UTC()
	if err := s.store.MarkSubmitted(job.ID, slurmJobID, now); err != nil {
		return nil, err
	}
	job.SlurmJobID = slurmJobID
	job.SubmittedAt = &now

	s.log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"owner":        owner.Username,
		"workload":     workloadKey,
		"runner":       runnerKey,
		"slurm_job_id": slurmJobID,
	}).Info("job submitted")
	return job, nil
}

// failSubmission marks a just-created job FAILED with the error recorded
// and returns the original error. A failed submission has no partial
// scheduler state to reconcile.
func (s *Service) failSubmission(job *models.Job, cause error) error {
	now := time.Now().UTC()
	if err := s.store.MarkFailed(job.ID, cause.Error(), now); err != nil {
		s.log.WithField("job_id", job.ID).WithError(err).Error("failed to record submission failure")
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	return cause
}

// Cancel cancels a job on behalf of an actor. Returns false when the job
// is already terminal. The scheduler cancel is best effort; the ledger
// transition is what makes the cancellation stick.
func (s *Service) Cancel(ctx context.Context, jobID string, actor models.User) (bool, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return false, err
	}
	if job.IsTerminal() {
		return false, nil
	}

	if job.SlurmJobID != "" {
		s.scheduler.Cancel(ctx, job.SlurmJobID)
	}

	now := time.Now().UTC()
	message := "Cancelled by " + actor.Username
	if err := s.store.MarkFailed(job.ID, message, now); err != nil {
		return false, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id": job.ID,
		"actor":  actor.Username,
	}).Info("job cancelled")
	return true, nil
}

// GetJob returns a single job by id.
func (s *Service) GetJob(id string) (*models.Job, error) {
	return s.store.GetJob(id)
}

// ListJobs returns an owner's visible jobs, newest first.
func (s *Service) ListJobs(ownerID string) ([]*models.Job, error) {
	return s.store.ListJobsByOwner(ownerID)
}

// OutputFile describes one artifact in a job's output directory. Primary
// marks the files a collaborator most likely wants first: predicted
// structures for folding and design runs, the result archive for sequence
// design.
type OutputFile struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Primary bool   `json:"primary"`
}

func isPrimaryOutput(runnerKey, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch runnerKey {
	case "ligandmpnn":
		return ext == ".zip" || filepath.Base(name) == "results.zip"
	case "rfdiffusion3":
		// Trajectory dumps are structures too, but never the result.
		return (ext == ".pdb" || ext == ".cif") && !strings.Contains(name, "traj")
	}
	return ext == ".pdb" || ext == ".cif"
}

// OutputFiles lists the artifacts under the job's output directory,
// sorted by name. A missing output directory yields an empty list.
func (s *Service) OutputFiles(job *models.Job) ([]OutputFile, error) {
	outdir := filepath.Join(job.Workdir(s.baseDir), "output")

	exists, err := afero.DirExists(s.fs, outdir)
	if err != nil || !exists {
		return nil, err
	}

	var files []OutputFile
	err = afero.Walk(s.fs, outdir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outdir, path)
		if err != nil {
			return err
		}
		files = append(files, OutputFile{
			Name:    rel,
			Size:    info.Size(),
			Primary: isPrimaryOutput(job.Runner, rel),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk output dir")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// OpenOutputFile opens one output artifact for reading. A file that has
// vanished (including deletion by the retention sweep mid-request) is a
// terminal ErrOutputNotFound, not a retryable condition.
func (s *Service) OpenOutputFile(job *models.Job, name string) (afero.File, error) {
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return nil, ErrOutputNotFound
	}

	path := filepath.Join(job.Workdir(s.baseDir), "output", clean)
	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrOutputNotFound
		}
		return nil, errors.Wrap(err, "open output file")
	}
	return f, nil
}
