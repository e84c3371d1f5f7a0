package routes

import (
	"net/http"

	"fold-portal/api/rest/handlers"
	"fold-portal/core/jobs"
	"fold-portal/core/repository"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, service *jobs.Service, jobRepo *repository.JobRepository, consoleRepo *repository.ConsoleRepository) {
	jobHandler := handlers.NewJobHandler(service)
	consoleHandler := handlers.NewConsoleHandler(consoleRepo, jobRepo)

	api := r.PathPrefix("/v1").Subrouter()

	// Job endpoints
	api.HandleFunc("/jobs", jobHandler.SubmitJob).Methods("POST")
	api.HandleFunc("/jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/output", jobHandler.GetJobOutput).Methods("GET")
	api.HandleFunc("/jobs/{id}/output/{name}", jobHandler.DownloadOutput).Methods("GET")

	// Operator console endpoints
	console := api.PathPrefix("/console").Subrouter()
	console.HandleFunc("/runners/{key}", handlers.RequireStaff(consoleHandler.GetRunnerConfig)).Methods("GET")
	console.HandleFunc("/runners/{key}", handlers.RequireStaff(consoleHandler.UpdateRunnerConfig)).Methods("PUT")
	console.HandleFunc("/quotas/{user_id}", handlers.RequireStaff(consoleHandler.GetUserQuota)).Methods("GET")
	console.HandleFunc("/quotas/{user_id}", handlers.RequireStaff(consoleHandler.UpdateUserQuota)).Methods("PUT")
	console.HandleFunc("/settings", handlers.RequireStaff(consoleHandler.GetSiteSettings)).Methods("GET")
	console.HandleFunc("/settings", handlers.RequireStaff(consoleHandler.UpdateSiteSettings)).Methods("PUT")
	console.HandleFunc("/jobs/{id}/hide", handlers.RequireStaff(consoleHandler.HideJob)).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
}
