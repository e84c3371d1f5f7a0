package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
// All values are read once at process start and are immutable afterwards.
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// Job storage
	JobBaseDir string

	// Scheduler
	FakeSlurm       bool
	PollInterval    time.Duration
	StaleJobTimeout time.Duration
	SubmitTimeout   time.Duration

	// Retention / cleanup
	CleanupInterval time.Duration

	// Default container images per runner
	BoltzImage        string
	ChaiImage         string
	LigandMPNNImage   string
	BoltzGenImage     string
	RFdiffusionImage  string
	RFdiffusion3Image string
	BindCraftImage    string
	AlphaFoldImage    string

	// Shared model caches mounted into containers
	BoltzCacheDir string
	ChaiCacheDir  string

	// Default quota values applied when no UserQuota row exists
	DefaultMaxConcurrentJobs int
	DefaultMaxQueuedJobs     int
	DefaultJobsPerDay        int
	DefaultRetentionDays     int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is honored if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost/fold_portal?sslmode=disable"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		JobBaseDir: getEnv("JOB_BASE_DIR", "./job_data"),

		FakeSlurm:       getEnvBool("FAKE_SLURM", false),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 30*time.Second),
		StaleJobTimeout: getEnvDuration("STALE_JOB_TIMEOUT", time.Hour),
		SubmitTimeout:   getEnvDuration("SUBMIT_TIMEOUT", 60*time.Second),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", 6*time.Hour),

		BoltzImage:        getEnv("BOLTZ_IMAGE", "ghcr.io/jwohlwend/boltz:latest"),
		ChaiImage:         getEnv("CHAI_IMAGE", "chaidiscovery/chai-lab:latest"),
		LigandMPNNImage:   getEnv("LIGANDMPNN_IMAGE", "ligandmpnn:latest"),
		BoltzGenImage:     getEnv("BOLTZGEN_IMAGE", "boltzgen:latest"),
		RFdiffusionImage:  getEnv("RFDIFFUSION_IMAGE", "rfdiffusion:latest"),
		RFdiffusion3Image: getEnv("RFDIFFUSION3_IMAGE", "rfdiffusion3:latest"),
		BindCraftImage:    getEnv("BINDCRAFT_IMAGE", "bindcraft:latest"),
		AlphaFoldImage:    getEnv("AF3_IMAGE", "alphafold3:latest"),

		BoltzCacheDir: getEnv("BOLTZ_CACHE_DIR", "/opt/cache/boltz"),
		ChaiCacheDir:  getEnv("CHAI_CACHE_DIR", "/opt/cache/chai"),

		DefaultMaxConcurrentJobs: getEnvInt("DEFAULT_MAX_CONCURRENT_JOBS", 1),
		DefaultMaxQueuedJobs:     getEnvInt("DEFAULT_MAX_QUEUED_JOBS", 5),
		DefaultJobsPerDay:        getEnvInt("DEFAULT_JOBS_PER_DAY", 10),
		DefaultRetentionDays:     getEnvInt("DEFAULT_RETENTION_DAYS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
