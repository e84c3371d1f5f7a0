package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"fold-portal/core/models"
)

type fakeStore struct {
	mu      sync.Mutex
	jobs    []*models.Job
	updates map[string]models.JobStatus
	failed  map[string]string
}

func newFakeStore(jobs ...*models.Job) *fakeStore {
	return &fakeStore{
		jobs:    jobs,
		updates: map[string]models.JobStatus{},
		failed:  map[string]string{},
	}
}

func (f *fakeStore) ListActiveJobs() ([]*models.Job, error) {
	return f.jobs, nil
}

func (f *fakeStore) UpdateJobStatus(id string, status models.JobStatus, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = status
	return nil
}

func (f *fakeStore) MarkFailed(id, message string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = message
	return nil
}

type fakeScheduler struct {
	statuses map[string]models.JobStatus
}

func (f *fakeScheduler) Submit(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeScheduler) Cancel(context.Context, string)                        {}

func (f *fakeScheduler) CheckStatus(_ context.Context, slurmJobID string) models.JobStatus {
	if s, ok := f.statuses[slurmJobID]; ok {
		return s
	}
	return models.JobStatusUnknown
}

func activeJob(id, slurmID string, status models.JobStatus, submittedAgo time.Duration) *models.Job {
	submitted := time.Now().Add(-submittedAgo)
	return &models.Job{
		ID:          id,
		SlurmJobID:  slurmID,
		Status:      status,
		CreatedAt:   submitted,
		SubmittedAt: &submitted,
	}
}

func TestPollTransitions(t *testing.T) {
	store := newFakeStore(
		activeJob("j1", "101", models.JobStatusPending, time.Minute),
		activeJob("j2", "102", models.JobStatusPending, time.Minute),
		activeJob("j3", "103", models.JobStatusRunning, time.Minute),
	)
	sched := &fakeScheduler{statuses: map[string]models.JobStatus{
		"101": models.JobStatusRunning,
		"102": models.JobStatusPending, // unchanged
		"103": models.JobStatusCompleted,
	}}

	New(store, sched, time.Second, time.Hour).Poll(context.Background())

	if store.updates["j1"] != models.JobStatusRunning {
		t.Errorf("Expected j1 -> RUNNING, got %q", store.updates["j1"])
	}
	if _, ok := store.updates["j2"]; ok {
		t.Error("Expected no write for an unchanged status")
	}
	if store.updates["j3"] != models.JobStatusCompleted {
		t.Errorf("Expected j3 -> COMPLETED, got %q", store.updates["j3"])
	}
}

func TestPollCompletedSetsCompletedAt(t *testing.T) {
	var gotCompletedAt *time.Time
	store := newFakeStore(activeJob("j1", "101", models.JobStatusRunning, time.Minute))
	captured := &completionCapture{fakeStore: store, out: &gotCompletedAt}
	sched := &fakeScheduler{statuses: map[string]models.JobStatus{"101": models.JobStatusCompleted}}

	New(captured, sched, time.Second, time.Hour).Poll(context.Background())

	if gotCompletedAt == nil {
		t.Fatal("Expected completed_at set on the terminal transition")
	}
}

type completionCapture struct {
	*fakeStore
	out **time.Time
}

func (c *completionCapture) UpdateJobStatus(id string, status models.JobStatus, completedAt *time.Time) error {
	*c.out = completedAt
	return c.fakeStore.UpdateJobStatus(id, status, completedAt)
}

func TestPollFreshUnknownIsLeftAlone(t *testing.T) {
	store := newFakeStore(activeJob("j1", "101", models.JobStatusPending, time.Minute))
	sched := &fakeScheduler{statuses: map[string]models.JobStatus{}}

	New(store, sched, time.Second, time.Hour).Poll(context.Background())

	if len(store.failed) != 0 {
		t.Errorf("Expected fresh unknown job untouched, got failures %v", store.failed)
	}
}

func TestPollStaleUnknownIsFailed(t *testing.T) {
	store := newFakeStore(activeJob("j1", "101", models.JobStatusPending, 2*time.Hour))
	sched := &fakeScheduler{statuses: map[string]models.JobStatus{}}

	New(store, sched, time.Second, time.Hour).Poll(context.Background())

	msg, ok := store.failed["j1"]
	if !ok {
		t.Fatal("Expected stale job marked failed")
	}
	if msg != staleJobMessage {
		t.Errorf("Expected stale message, got %q", msg)
	}
}

func TestPollManyJobsBoundedPool(t *testing.T) {
	var jobs []*models.Job
	statuses := map[string]models.JobStatus{}
	for i := 0; i < 50; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		jobs = append(jobs, activeJob("job-"+id, id, models.JobStatusPending, time.Minute))
		statuses[id] = models.JobStatusRunning
	}
	store := newFakeStore(jobs...)

	New(store, &fakeScheduler{statuses: statuses}, time.Second, time.Hour).Poll(context.Background())

	if len(store.updates) != 50 {
		t.Errorf("Expected all 50 jobs reconciled, got %d", len(store.updates))
	}
}
