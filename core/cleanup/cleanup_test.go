package cleanup

import (
	"context"
	"testing"
	"time"

	"fold-portal/core/models"

	"github.com/spf13/afero"
)

type fakeStore struct {
	finished []*models.Job
	all      []*models.Job
}

func (f *fakeStore) ListFinishedJobs() ([]*models.Job, error) { return f.finished, nil }
func (f *fakeStore) ListAllJobs() ([]*models.Job, error)      { return f.all, nil }

type fakeQuotas struct {
	retentionDays map[string]int
}

func (f *fakeQuotas) GetUserQuota(userID string) (*models.UserQuota, error) {
	return &models.UserQuota{UserID: userID, RetentionDays: f.retentionDays[userID]}, nil
}

func finishedJob(id, owner string, completedAgo time.Duration) *models.Job {
	completed := time.Now().Add(-completedAgo)
	return &models.Job{
		ID:          id,
		OwnerID:     owner,
		Status:      models.JobStatusCompleted,
		SlurmJobID:  "1",
		CompletedAt: &completed,
	}
}

func seedWorkdir(t *testing.T, fs afero.Fs, id string) {
	t.Helper()
	if err := afero.WriteFile(fs, "/jobs/"+id+"/output/result.pdb", []byte("ATOM"), 0o644); err != nil {
		t.Fatalf("seed workdir: %v", err)
	}
}

func TestSweepDeletesExpiredWorkdirsOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	old := finishedJob("old", "u1", 40*24*time.Hour)
	fresh := finishedJob("fresh", "u1", 5*24*time.Hour)
	seedWorkdir(t, fs, "old")
	seedWorkdir(t, fs, "fresh")

	store := &fakeStore{finished: []*models.Job{old, fresh}}
	svc := NewService(store, &fakeQuotas{retentionDays: map[string]int{"u1": 30}}, fs, "/jobs")

	report, err := svc.Sweep(false)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Deleted != 1 || report.Skipped != 1 {
		t.Errorf("Expected 1 deleted / 1 skipped, got %+v", report)
	}
	if report.Reclaimed == 0 {
		t.Error("Expected reclaimed bytes counted")
	}

	if ok, _ := afero.DirExists(fs, "/jobs/old"); ok {
		t.Error("Expected expired workdir deleted")
	}
	if ok, _ := afero.DirExists(fs, "/jobs/fresh"); !ok {
		t.Error("Expected fresh workdir kept")
	}
}

func TestSweepZeroRetentionKeepsForever(t *testing.T) {
	fs := afero.NewMemMapFs()
	job := finishedJob("ancient", "keeper", 1000*24*time.Hour)
	seedWorkdir(t, fs, "ancient")

	store := &fakeStore{finished: []*models.Job{job}}
	svc := NewService(store, &fakeQuotas{retentionDays: map[string]int{"keeper": 0}}, fs, "/jobs")

	report, err := svc.Sweep(false)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Deleted != 0 {
		t.Errorf("Expected nothing deleted with zero retention, got %+v", report)
	}
	if ok, _ := afero.DirExists(fs, "/jobs/ancient"); !ok {
		t.Error("Expected workdir kept")
	}
}

func TestSweepDryRunDeletesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	job := finishedJob("old", "u1", 40*24*time.Hour)
	seedWorkdir(t, fs, "old")

	store := &fakeStore{finished: []*models.Job{job}}
	svc := NewService(store, &fakeQuotas{retentionDays: map[string]int{"u1": 30}}, fs, "/jobs")

	report, err := svc.Sweep(true)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Deleted != 1 {
		t.Errorf("Expected the candidate counted in the dry run, got %+v", report)
	}
	if ok, _ := afero.DirExists(fs, "/jobs/old"); !ok {
		t.Error("Expected dry run to keep the workdir")
	}
}

func TestRunSweepsBeforeFirstTick(t *testing.T) {
	fs := afero.NewMemMapFs()
	job := finishedJob("old", "u1", 40*24*time.Hour)
	seedWorkdir(t, fs, "old")

	store := &fakeStore{finished: []*models.Job{job}}
	svc := NewService(store, &fakeQuotas{retentionDays: map[string]int{"u1": 30}}, fs, "/jobs")

	// A cancelled context stops the loop right after the initial sweep,
	// long before the hour-long interval elapses.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx, time.Hour)

	if ok, _ := afero.DirExists(fs, "/jobs/old"); ok {
		t.Error("Expected the expired workdir swept on startup")
	}
}

func TestDetectOrphanWorkdirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedWorkdir(t, fs, "known")
	seedWorkdir(t, fs, "stray")

	store := &fakeStore{all: []*models.Job{{ID: "known"}}}
	svc := NewService(store, &fakeQuotas{}, fs, "/jobs")

	orphans, err := svc.DetectOrphanWorkdirs()
	if err != nil {
		t.Fatalf("DetectOrphanWorkdirs failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Name != "stray" {
		t.Fatalf("Expected the stray dir only, got %v", orphans)
	}
	if orphans[0].Size == 0 {
		t.Error("Expected orphan size measured")
	}

	if err := svc.DeleteOrphanWorkdir("stray"); err != nil {
		t.Fatalf("DeleteOrphanWorkdir failed: %v", err)
	}
	if ok, _ := afero.DirExists(fs, "/jobs/stray"); ok {
		t.Error("Expected orphan deleted")
	}
}

func TestDeleteOrphanWorkdirRejectsPaths(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeQuotas{}, afero.NewMemMapFs(), "/jobs")
	if err := svc.DeleteOrphanWorkdir("../etc"); err == nil {
		t.Error("Expected path traversal rejected")
	}
	if err := svc.DeleteOrphanWorkdir(""); err == nil {
		t.Error("Expected empty name rejected")
	}
}

func TestDetectOrphanJobs(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedWorkdir(t, fs, "present")

	submitted := &models.Job{ID: "ghost", Status: models.JobStatusRunning, SlurmJobID: "7"}
	unsubmitted := &models.Job{ID: "queued", Status: models.JobStatusPending}
	done := finishedJob("finished", "u1", time.Hour)
	present := &models.Job{ID: "present", Status: models.JobStatusRunning, SlurmJobID: "8"}

	store := &fakeStore{all: []*models.Job{submitted, unsubmitted, done, present}}
	svc := NewService(store, &fakeQuotas{}, fs, "/jobs")

	orphans, err := svc.DetectOrphanJobs()
	if err != nil {
		t.Fatalf("DetectOrphanJobs failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != "ghost" {
		t.Fatalf("Expected only the submitted job without a workdir, got %v", orphans)
	}
}
