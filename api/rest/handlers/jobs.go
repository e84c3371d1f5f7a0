package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"fold-portal/core/admission"
	"fold-portal/core/jobs"
	"fold-portal/core/models"
	"fold-portal/core/repository"
	"fold-portal/core/slurm"
	"fold-portal/core/workload"

	"github.com/gorilla/mux"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	service *jobs.Service
}

// NewJobHandler creates a new job handler
func NewJobHandler(service *jobs.Service) *JobHandler {
	return &JobHandler{service: service}
}

// SubmitJobRequest represents the request to submit a job. Files are
// base64-encoded by the caller; keys are the form field names the workload
// type expects (pdb_file, fasta_file, ...).
type SubmitJobRequest struct {
	Workload string                 `json:"workload"`
	Name     string                 `json:"name"`
	Input    map[string]interface{} `json:"input"`
	Files    map[string]string      `json:"files"`
}

// JobResponse is the wire form of a job record.
type JobResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Workload     string     `json:"workload"`
	Runner       string     `json:"runner"`
	Status       string     `json:"status"`
	SlurmJobID   string     `json:"slurm_job_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func jobResponse(job *models.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Name:         job.Name,
		Workload:     job.Workload,
		Runner:       job.Runner,
		Status:       string(job.Status),
		SlurmJobID:   job.SlurmJobID,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		SubmittedAt:  job.SubmittedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// SubmitJob handles POST /v1/jobs
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := workload.Raw{}
	for k, v := range req.Input {
		input[k] = v
	}
	for name, encoded := range req.Files {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid base64 in file "+name)
			return
		}
		input[name] = data
	}

	owner := requestUser(r)
	job, err := h.service.Submit(r.Context(), owner, req.Workload, req.Name, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, jobResponse(job))
}

// ListJobs handles GET /v1/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	owner := requestUser(r)
	list, err := h.service.ListJobs(owner.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	out := make([]JobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetJob handles GET /v1/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

// CancelJob handles POST /v1/jobs/{id}/cancel
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), job.ID, requestUser(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// GetJobOutput handles GET /v1/jobs/{id}/output
func (h *JobHandler) GetJobOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	files, err := h.service.OutputFiles(job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list output")
		return
	}
	if files == nil {
		files = []jobs.OutputFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadOutput handles GET /v1/jobs/{id}/output/{name}
func (h *JobHandler) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	f, err := h.service.OpenOutputFile(job, name)
	if err == jobs.ErrOutputNotFound {
		writeError(w, http.StatusNotFound, "Output file not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to open output file")
		return
	}
	defer f.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (h *JobHandler) loadJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	job, err := h.service.GetJob(mux.Vars(r)["id"])
	if err == repository.ErrNotFound {
		writeError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job")
		return nil, false
	}
	return job, true
}

// requestUser resolves the acting user from request headers. Authentication
// proper happens upstream (reverse proxy / SSO); the portal trusts the
// forwarded identity.
func requestUser(r *http.Request) models.User {
	user := models.User{
		ID:       r.Header.Get("X-User-Id"),
		Username: r.Header.Get("X-User-Name"),
		IsStaff:  r.Header.Get("X-User-Staff") == "true",
	}
	if user.ID == "" {
		user.ID = "anonymous"
	}
	if user.Username == "" {
		user.Username = user.ID
	}
	return user
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps typed domain errors onto HTTP statuses: rejected
// and invalid submissions are client errors, scheduler failures are server
// errors.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case workload.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case admission.IsAdmissionError(err):
		writeError(w, http.StatusForbidden, err.Error())
	case slurm.IsSchedulerError(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
