package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"fold-portal/core/jobs"
	"fold-portal/core/models"
	"fold-portal/core/repository"
	"fold-portal/core/runner"
	"fold-portal/core/slurm"
	"fold-portal/core/workload"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
)

type memStore struct {
	jobs map[string]*models.Job
	seq  int
}

func (m *memStore) CreateJob(job *models.Job) error {
	m.seq++
	if job.ID == "" {
		job.ID = "job-" + string(rune('0'+m.seq))
	}
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = job
	return nil
}

func (m *memStore) GetJob(id string) (*models.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

func (m *memStore) ListJobsByOwner(ownerID string) ([]*models.Job, error) {
	var out []*models.Job
	for _, job := range m.jobs {
		if job.OwnerID == ownerID && !job.HiddenFromOwner {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *memStore) MarkSubmitted(id, slurmJobID string, at time.Time) error {
	m.jobs[id].SlurmJobID = slurmJobID
	m.jobs[id].SubmittedAt = &at
	return nil
}

func (m *memStore) MarkFailed(id, message string, at time.Time) error {
	job := m.jobs[id]
	job.Status = models.JobStatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &at
	return nil
}

type openConfigs struct{}

func (openConfigs) GetRunnerConfig(key string) (*models.RunnerConfig, error) {
	return models.DefaultRunnerConfig(key), nil
}

type allowAll struct{}

func (allowAll) Check(models.User, string) error { return nil }

func testRouter(t *testing.T) (*mux.Router, *memStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := &memStore{jobs: map[string]*models.Job{}}
	service := jobs.NewService(
		store,
		openConfigs{},
		allowAll{},
		workload.DefaultRegistry(),
		runner.DefaultRegistry(runner.Defaults{JobBaseDir: "/jobs"}),
		slurm.NewSimulatedClient(fs, "/jobs"),
		fs,
		"/jobs",
	)

	r := mux.NewRouter()
	api := r.PathPrefix("/v1").Subrouter()
	h := NewJobHandler(service)
	api.HandleFunc("/jobs", h.SubmitJob).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/output", h.GetJobOutput).Methods("GET")
	api.HandleFunc("/jobs/{id}/output/{name}", h.DownloadOutput).Methods("GET")
	return r, store, fs
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Name", "ada")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitJobEndpoint(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/v1/jobs", SubmitJobRequest{
		Workload: "boltz2",
		Name:     "test fold",
		Input:    map[string]interface{}{"sequences": ">A\nMKV"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "PENDING" {
		t.Errorf("Expected PENDING, got %q", resp.Status)
	}
	if resp.SlurmJobID == "" {
		t.Error("Expected a scheduler id in the response")
	}
}

func TestSubmitJobValidationError(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/v1/jobs", SubmitJobRequest{Workload: "boltz2"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] == "" {
		t.Error("Expected error message in response")
	}
}

func TestSubmitJobWithFile(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/v1/jobs", SubmitJobRequest{
		Workload: "ligand_mpnn",
		Input:    map[string]interface{}{},
		Files: map[string]string{
			"pdb_file": base64.StdEncoding.EncodeToString([]byte("ATOM")),
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitJobBadBase64(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/v1/jobs", SubmitJobRequest{
		Workload: "ligand_mpnn",
		Files:    map[string]string{"pdb_file": "not base64!!"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doJSON(t, r, "GET", "/v1/jobs/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	r, store, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/v1/jobs", SubmitJobRequest{
		Workload: "boltz2",
		Input:    map[string]interface{}{"sequences": ">A\nM"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	var created JobResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(t, r, "POST", "/v1/jobs/"+created.ID+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.jobs[created.ID].Status != models.JobStatusFailed {
		t.Errorf("Expected FAILED after cancel, got %s", store.jobs[created.ID].Status)
	}
}

func TestDownloadOutputEscapesFilename(t *testing.T) {
	r, store, fs := testRouter(t)
	store.jobs["j1"] = &models.Job{ID: "j1", OwnerID: "u1", Status: models.JobStatusCompleted}

	name := `ligand "A".pdb`
	if err := afero.WriteFile(fs, "/jobs/j1/output/"+name, []byte("ATOM"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	w := doJSON(t, r, "GET", "/v1/jobs/j1/output/"+url.PathEscape(name), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "ATOM" {
		t.Errorf("Expected file content, got %q", w.Body.String())
	}

	disposition := w.Header().Get("Content-Disposition")
	mediaType, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		t.Fatalf("Content-Disposition %q does not parse: %v", disposition, err)
	}
	if mediaType != "attachment" {
		t.Errorf("Expected attachment disposition, got %q", mediaType)
	}
	if params["filename"] != name {
		t.Errorf("Expected filename %q round-tripped, got %q", name, params["filename"])
	}
}

func TestListJobsExcludesOtherOwners(t *testing.T) {
	r, store, _ := testRouter(t)
	store.jobs["mine"] = &models.Job{ID: "mine", OwnerID: "u1", Status: models.JobStatusPending}
	store.jobs["theirs"] = &models.Job{ID: "theirs", OwnerID: "u2", Status: models.JobStatusPending}

	w := doJSON(t, r, "GET", "/v1/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var list []JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "mine" {
		t.Errorf("Expected only the caller's job, got %v", list)
	}
}
