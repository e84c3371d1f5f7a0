package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"fold-portal/core/models"
	"fold-portal/core/repository"

	"github.com/gorilla/mux"
)

// ConsoleHandler serves the operator console: runner configuration, user
// quotas, site settings, and job moderation. All routes require a staff
// identity.
type ConsoleHandler struct {
	console *repository.ConsoleRepository
	jobs    *repository.JobRepository
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(console *repository.ConsoleRepository, jobs *repository.JobRepository) *ConsoleHandler {
	return &ConsoleHandler{console: console, jobs: jobs}
}

// RequireStaff rejects non-staff callers before the wrapped handler runs.
func RequireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requestUser(r).IsStaff {
			writeError(w, http.StatusForbidden, "Staff access required")
			return
		}
		next(w, r)
	}
}

// GetRunnerConfig handles GET /v1/console/runners/{key}
func (h *ConsoleHandler) GetRunnerConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.console.GetRunnerConfig(mux.Vars(r)["key"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load runner config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateRunnerConfigRequest carries a runner config mutation.
type UpdateRunnerConfigRequest struct {
	Enabled        bool              `json:"enabled"`
	DisabledReason string            `json:"disabled_reason"`
	Partition      string            `json:"partition"`
	GPUs           int               `json:"gpus"`
	CPUs           int               `json:"cpus"`
	MemGB          int               `json:"mem_gb"`
	TimeLimit      string            `json:"time_limit"`
	ImageURI       string            `json:"image_uri"`
	ExtraEnv       map[string]string `json:"extra_env"`
	ExtraMounts    []models.Mount    `json:"extra_mounts"`
}

// UpdateRunnerConfig handles PUT /v1/console/runners/{key}
func (h *ConsoleHandler) UpdateRunnerConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateRunnerConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := &models.RunnerConfig{
		RunnerKey:      mux.Vars(r)["key"],
		Enabled:        req.Enabled,
		DisabledReason: req.DisabledReason,
		Partition:      req.Partition,
		GPUs:           req.GPUs,
		CPUs:           req.CPUs,
		MemGB:          req.MemGB,
		TimeLimit:      req.TimeLimit,
		ImageURI:       req.ImageURI,
		ExtraEnv:       req.ExtraEnv,
		ExtraMounts:    req.ExtraMounts,
		UpdatedAt:      time.Now().UTC(),
		UpdatedBy:      requestUser(r).Username,
	}
	if err := h.console.UpsertRunnerConfig(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save runner config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetUserQuota handles GET /v1/console/quotas/{user_id}
func (h *ConsoleHandler) GetUserQuota(w http.ResponseWriter, r *http.Request) {
	quota, err := h.console.GetUserQuota(mux.Vars(r)["user_id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load quota")
		return
	}
	writeJSON(w, http.StatusOK, quota)
}

// UpdateUserQuotaRequest carries a quota mutation.
type UpdateUserQuotaRequest struct {
	MaxConcurrentJobs int    `json:"max_concurrent_jobs"`
	MaxQueuedJobs     int    `json:"max_queued_jobs"`
	JobsPerDay        int    `json:"jobs_per_day"`
	RetentionDays     int    `json:"retention_days"`
	IsDisabled        bool   `json:"is_disabled"`
	DisabledReason    string `json:"disabled_reason"`
}

// UpdateUserQuota handles PUT /v1/console/quotas/{user_id}
func (h *ConsoleHandler) UpdateUserQuota(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	quota := &models.UserQuota{
		UserID:            mux.Vars(r)["user_id"],
		MaxConcurrentJobs: req.MaxConcurrentJobs,
		MaxQueuedJobs:     req.MaxQueuedJobs,
		JobsPerDay:        req.JobsPerDay,
		RetentionDays:     req.RetentionDays,
		IsDisabled:        req.IsDisabled,
		DisabledReason:    req.DisabledReason,
		UpdatedAt:         time.Now().UTC(),
	}
	if err := h.console.UpsertUserQuota(quota); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save quota")
		return
	}
	writeJSON(w, http.StatusOK, quota)
}

// GetSiteSettings handles GET /v1/console/settings
func (h *ConsoleHandler) GetSiteSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.console.GetSiteSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSiteSettingsRequest carries a site settings mutation.
type UpdateSiteSettingsRequest struct {
	MaintenanceMode    bool   `json:"maintenance_mode"`
	MaintenanceMessage string `json:"maintenance_message"`
}

// UpdateSiteSettings handles PUT /v1/console/settings
func (h *ConsoleHandler) UpdateSiteSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSiteSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := &models.SiteSettings{
		MaintenanceMode:    req.MaintenanceMode,
		MaintenanceMessage: req.MaintenanceMessage,
		UpdatedAt:          time.Now().UTC(),
		UpdatedBy:          requestUser(r).Username,
	}
	if err := h.console.SetSiteSettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HideJobRequest toggles owner-facing visibility of a job.
type HideJobRequest struct {
	Hidden bool `json:"hidden"`
}

// HideJob handles POST /v1/console/jobs/{id}/hide
func (h *ConsoleHandler) HideJob(w http.ResponseWriter, r *http.Request) {
	var req HideJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.jobs.GetJob(id); err == repository.ErrNotFound {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	if err := h.jobs.SetHidden(id, req.Hidden); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hidden": req.Hidden})
}
