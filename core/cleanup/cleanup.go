// Package cleanup reclaims disk from finished job workdirs and surfaces
// inconsistencies between the job ledger and the filesystem.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fold-portal/core/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Store is the ledger access the cleanup service needs.
type Store interface {
	ListFinishedJobs() ([]*models.Job, error)
	ListAllJobs() ([]*models.Job, error)
}

// QuotaStore resolves per-user retention settings.
type QuotaStore interface {
	GetUserQuota(userID string) (*models.UserQuota, error)
}

// Service runs the retention sweep and the orphan scans.
type Service struct {
	store  Store
	quotas QuotaStore
	fs     afero.Fs
	base   string
	now    func() time.Time
	log    *logrus.Entry
}

// NewService creates a cleanup service rooted at the job base directory.
func NewService(store Store, quotas QuotaStore, fs afero.Fs, baseDir string) *Service {
	return &Service{
		store:  store,
		quotas: quotas,
		fs:     fs,
		base:   baseDir,
		now:    time.Now,
		log:    logrus.WithField("component", "cleanup"),
	}
}

// SweepReport summarizes one retention sweep.
type SweepReport struct {
	Scanned   int
	Deleted   int
	Skipped   int
	Errors    int
	Reclaimed int64
}

// Sweep deletes workdirs of finished jobs older than their owner's
// retention window. The ledger rows stay: job history outlives its
// artifacts. A retention of 0 days means keep forever. Per-job errors are
// counted, never fatal to the sweep.
func (s *Service) Sweep(dryRun bool) (*SweepReport, error) {
	jobs, err := s.store.ListFinishedJobs()
	if err != nil {
		return nil, errors.Wrap(err, "list finished jobs")
	}

	report := &SweepReport{}
	retention := map[string]int{}
	now := s.now()

	for _, job := range jobs {
		report.Scanned++

		days, ok := retention[job.OwnerID]
		if !ok {
			quota, err := s.quotas.GetUserQuota(job.OwnerID)
			if err != nil {
				s.log.WithField("owner_id", job.OwnerID).WithError(err).Error("failed to load quota")
				report.Errors++
				continue
			}
			days = quota.RetentionDays
			retention[job.OwnerID] = days
		}
		if days <= 0 {
			report.Skipped++
			continue
		}
		if job.CompletedAt == nil || now.Sub(*job.CompletedAt) < time.Duration(days)*24*time.Hour {
			report.Skipped++
			continue
		}

		workdir := job.Workdir(s.base)
		exists, err := afero.DirExists(s.fs, workdir)
		if err != nil {
			report.Errors++
			continue
		}
		if !exists {
			report.Skipped++
			continue
		}

		size, _ := s.dirSize(workdir)
		if dryRun {
			report.Deleted++
			report.Reclaimed += size
			continue
		}

		if err := s.fs.RemoveAll(workdir); err != nil {
			s.log.WithField("job_id", job.ID).WithError(err).Error("failed to delete workdir")
			report.Errors++
			continue
		}
		report.Deleted++
		report.Reclaimed += size
		s.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"bytes":  size,
		}).Info("workdir deleted")
	}

	return report, nil
}

// Run sweeps immediately, then on the given interval until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.log.WithField("interval", interval).Info("cleanup started")

	if _, err := s.Sweep(false); err != nil {
		s.log.WithError(err).Error("retention sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("cleanup stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(false); err != nil {
				s.log.WithError(err).Error("retention sweep failed")
			}
		}
	}
}

// OrphanWorkdir is a directory under the job base with no ledger row.
type OrphanWorkdir struct {
	Name     string
	Size     int64
	Modified time.Time
}

// DetectOrphanWorkdirs lists directories under the base dir that no job
// record references. These come from deleted ledger rows or aborted
// submissions and are safe to remove by hand.
func (s *Service) DetectOrphanWorkdirs() ([]OrphanWorkdir, error) {
	jobs, err := s.store.ListAllJobs()
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	known := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		known[job.ID] = true
	}

	entries, err := afero.ReadDir(s.fs, s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read base dir")
	}

	var orphans []OrphanWorkdir
	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		size, _ := s.dirSize(filepath.Join(s.base, entry.Name()))
		orphans = append(orphans, OrphanWorkdir{
			Name:     entry.Name(),
			Size:     size,
			Modified: entry.ModTime(),
		})
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Name < orphans[j].Name })
	return orphans, nil
}

// DeleteOrphanWorkdir removes one orphan directory. The name must be a
// direct child of the base dir.
func (s *Service) DeleteOrphanWorkdir(name string) error {
	if name == "" || name != filepath.Base(name) {
		return errors.Errorf("invalid workdir name: %q", name)
	}
	return errors.Wrap(s.fs.RemoveAll(filepath.Join(s.base, name)), "delete orphan workdir")
}

// DetectOrphanJobs lists ledger rows whose workdir is missing while the
// job is still in a state that should have one. Report only: the poller
// owns status transitions.
func (s *Service) DetectOrphanJobs() ([]*models.Job, error) {
	jobs, err := s.store.ListAllJobs()
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}

	var orphans []*models.Job
	for _, job := range jobs {
		if job.SlurmJobID == "" {
			continue
		}
		exists, err := afero.DirExists(s.fs, job.Workdir(s.base))
		if err != nil {
			return nil, errors.Wrap(err, "stat workdir")
		}
		if !exists && !job.IsTerminal() {
			orphans = append(orphans, job)
		}
	}
	return orphans, nil
}

func (s *Service) dirSize(dir string) (int64, error) {
	var total int64
	err := afero.Walk(s.fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
