package runner

import (
	"fmt"
	"sort"
	"strconv"

	"fold-portal/core/models"
)

// sbatchHeader builds the script preamble: shebang, job name, log capture
// into the job's output directory, and any resource directives from the
// config.
func sbatchHeader(prefix string, job *models.Job, outdir string, cfg *models.RunnerConfig) string {
	header := fmt.Sprintf(`#!/bin/bash
#SBATCH --job-name=%s-%s
#SBATCH --output=%s/slurm-%%j.out
#SBATCH --error=%s/slurm-%%j.err`, prefix, job.ID, outdir, outdir)

	if cfg != nil {
		if directives := cfg.SlurmDirectives(); directives != "" {
			header += "\n" + directives
		}
	}
	return header
}

// configImage returns the config's image override, else the fallback.
func configImage(cfg *models.RunnerConfig, fallback string) string {
	if cfg != nil && cfg.ImageURI != "" {
		return cfg.ImageURI
	}
	return fallback
}

// configDockerArgs renders extra environment variables and bind mounts from
// the config as docker CLI flags. Env vars are emitted in sorted key order
// so scripts stay byte-identical across builds.
func configDockerArgs(cfg *models.RunnerConfig) []string {
	if cfg == nil {
		return nil
	}
	var args []string
	keys := make([]string, 0, len(cfg.ExtraEnv))
	for k := range cfg.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-e %s=%s", k, cfg.ExtraEnv[k]))
	}
	for _, m := range cfg.ExtraMounts {
		args = append(args, fmt.Sprintf("-v %s:%s", m.Source, m.Target))
	}
	return args
}

func paramString(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	switch v := params[key].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		// JSON round-trips integers as float64.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return ""
}

func paramInt(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func paramBool(params map[string]interface{}, key string) bool {
	if params == nil {
		return false
	}
	v, _ := params[key].(bool)
	return v
}

func paramFloat(params map[string]interface{}, key string, def float64) float64 {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// hasParam reports whether key is present at all, regardless of value.
func hasParam(params map[string]interface{}, key string) bool {
	if params == nil {
		return false
	}
	_, ok := params[key]
	return ok
}
