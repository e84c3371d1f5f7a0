package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fold-portal/api/rest/routes"
	"fold-portal/config"
	"fold-portal/core/admission"
	"fold-portal/core/cleanup"
	"fold-portal/core/jobs"
	"fold-portal/core/poller"
	"fold-portal/core/repository"
	"fold-portal/core/runner"
	"fold-portal/core/slurm"
	"fold-portal/core/workload"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func main() {
	cfg := config.Load()
	log := logrus.WithField("component", "server")

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("database connected")

	jobRepo := repository.NewJobRepository(db)
	consoleRepo := repository.NewConsoleRepository(db, repository.QuotaDefaults{
		MaxConcurrentJobs: cfg.DefaultMaxConcurrentJobs,
		MaxQueuedJobs:     cfg.DefaultMaxQueuedJobs,
		JobsPerDay:        cfg.DefaultJobsPerDay,
		RetentionDays:     cfg.DefaultRetentionDays,
	})

	fs := afero.NewOsFs()

	var scheduler slurm.Client
	if cfg.FakeSlurm {
		scheduler = slurm.NewSimulatedClient(fs, cfg.JobBaseDir)
		log.Warn("using simulated scheduler; jobs will not run on the cluster")
	} else {
		scheduler = slurm.NewLiveClient(fs, cfg.SubmitTimeout)
	}

	workloads := workload.DefaultRegistry()
	runners := runner.DefaultRegistry(runner.Defaults{
		JobBaseDir:        cfg.JobBaseDir,
		BoltzImage:        cfg.BoltzImage,
		ChaiImage:         cfg.ChaiImage,
		LigandMPNNImage:   cfg.LigandMPNNImage,
		BoltzGenImage:     cfg.BoltzGenImage,
		RFdiffusionImage:  cfg.RFdiffusionImage,
		RFdiffusion3Image: cfg.RFdiffusion3Image,
		BindCraftImage:    cfg.BindCraftImage,
		AlphaFoldImage:    cfg.AlphaFoldImage,
		BoltzCacheDir:     cfg.BoltzCacheDir,
		ChaiCacheDir:      cfg.ChaiCacheDir,
	})

	admitter := admission.NewController(consoleRepo, jobRepo)
	service := jobs.NewService(jobRepo, consoleRepo, admitter, workloads, runners, scheduler, fs, cfg.JobBaseDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle := poller.New(jobRepo, scheduler, cfg.PollInterval, cfg.StaleJobTimeout)
	go lifecycle.Run(ctx)

	retention := cleanup.NewService(jobRepo, consoleRepo, fs, cfg.JobBaseDir)
	go retention.Run(ctx, cfg.CleanupInterval)

	r := mux.NewRouter()
	routes.SetupRoutes(r, service, jobRepo, consoleRepo)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.WithField("port", cfg.ServerPort).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		logrus.WithError(err).Fatal("forced shutdown")
	}
	log.Info("server exited")
}
