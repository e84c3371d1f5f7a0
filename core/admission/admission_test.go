package admission

import (
	"strings"
	"testing"
	"time"

	"fold-portal/core/models"
)

type fakeConsole struct {
	settings models.SiteSettings
	runner   models.RunnerConfig
	quota    models.UserQuota
}

func (f *fakeConsole) GetSiteSettings() (*models.SiteSettings, error) {
	s := f.settings
	if s.MaintenanceMessage == "" {
		s.MaintenanceMessage = models.DefaultMaintenanceMessage
	}
	return &s, nil
}

func (f *fakeConsole) GetRunnerConfig(string) (*models.RunnerConfig, error) {
	r := f.runner
	return &r, nil
}

func (f *fakeConsole) GetUserQuota(string) (*models.UserQuota, error) {
	q := f.quota
	return &q, nil
}

type fakeCounter struct {
	running int
	pending int
	today   int
}

func (f *fakeCounter) CountJobsByStatus(_ string, status models.JobStatus) (int, error) {
	if status == models.JobStatusRunning {
		return f.running, nil
	}
	return f.pending, nil
}

func (f *fakeCounter) CountJobsCreatedSince(string, time.Time) (int, error) {
	return f.today, nil
}

func openConsole() *fakeConsole {
	return &fakeConsole{
		runner: models.RunnerConfig{Enabled: true},
		quota: models.UserQuota{
			MaxConcurrentJobs: 1,
			MaxQueuedJobs:     5,
			JobsPerDay:        10,
		},
	}
}

func checkErr(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected rejection containing %q, got nil", want)
	}
	if !IsAdmissionError(err) {
		t.Fatalf("Expected admission error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Expected reason containing %q, got %q", want, err.Error())
	}
}

func TestCheckAllows(t *testing.T) {
	c := NewController(openConsole(), &fakeCounter{})
	if err := c.Check(models.User{ID: "u1"}, "boltz-2"); err != nil {
		t.Fatalf("Expected admission, got %v", err)
	}
}

func TestMaintenanceModeBlocksEveryone(t *testing.T) {
	console := openConsole()
	console.settings.MaintenanceMode = true
	c := NewController(console, &fakeCounter{})

	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "maintenance")
	// Maintenance outranks staff status.
	checkErr(t, c.Check(models.User{ID: "admin", IsStaff: true}, "boltz-2"), "maintenance")
}

func TestDisabledRunner(t *testing.T) {
	console := openConsole()
	console.runner = models.RunnerConfig{Enabled: false, DisabledReason: "GPU nodes down"}
	c := NewController(console, &fakeCounter{})

	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "GPU nodes down")
}

func TestDisabledRunnerDefaultReason(t *testing.T) {
	console := openConsole()
	console.runner = models.RunnerConfig{Enabled: false}
	c := NewController(console, &fakeCounter{})

	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "temporarily unavailable")
}

func TestDisabledAccountOutranksQuota(t *testing.T) {
	console := openConsole()
	console.quota.IsDisabled = true
	console.quota.DisabledReason = "abuse"
	// Over every quota too; the disabled-account reason must win.
	c := NewController(console, &fakeCounter{running: 10, pending: 10, today: 100})

	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "disabled: abuse")
}

func TestConcurrentLimit(t *testing.T) {
	c := NewController(openConsole(), &fakeCounter{running: 1})
	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "concurrent jobs (1)")
}

func TestQueuedLimit(t *testing.T) {
	c := NewController(openConsole(), &fakeCounter{pending: 5})
	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "queued jobs (5)")
}

func TestDailyLimit(t *testing.T) {
	c := NewController(openConsole(), &fakeCounter{today: 10})
	checkErr(t, c.Check(models.User{ID: "u1"}, "boltz-2"), "per day (10)")
}

func TestStaffExemptFromQuotaOnly(t *testing.T) {
	console := openConsole()
	c := NewController(console, &fakeCounter{running: 10, pending: 10, today: 100})

	if err := c.Check(models.User{ID: "admin", IsStaff: true}, "boltz-2"); err != nil {
		t.Fatalf("Expected staff exempt from quota, got %v", err)
	}

	// But not from a disabled runner.
	console.runner = models.RunnerConfig{Enabled: false}
	checkErr(t, c.Check(models.User{ID: "admin", IsStaff: true}, "boltz-2"), "disabled")
}
