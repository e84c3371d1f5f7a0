package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// BindCraft runs the binder design pipeline against the generated target
// settings document.
type BindCraft struct {
	BaseDir string
	Image   string
}

func (r *BindCraft) Key() string  { return "bindcraft" }
func (r *BindCraft) Name() string { return "BindCraft" }

func (r *BindCraft) Validate(_ string, _ map[string]interface{}) []string {
	return nil
}

func (r *BindCraft) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	cmdArgs := []string{
		"--settings /work/input/target_settings.json",
	}
	if paramBool(job.Params, "has_custom_filters") {
		cmdArgs = append(cmdArgs, "--filters /work/input/filters.json")
	}
	if paramBool(job.Params, "has_custom_advanced") {
		cmdArgs = append(cmdArgs, "--advanced /work/input/advanced.json")
	}

	dockerArgs := []string{
		"docker run --rm --gpus all",
		fmt.Sprintf("-v %s:/work", workdir),
	}
	dockerArgs = append(dockerArgs, configDockerArgs(cfg)...)
	dockerArgs = append(dockerArgs,
		image,
		strings.Join(cmdArgs, " \\\n    "),
	)

	return fmt.Sprintf(`%s

set -euo pipefail

mkdir -p %s

%s

# Ensure output is readable by the portal
chmod -R a+rX %s 2>/dev/null || true
`, sbatchHeader("bindcraft", job, outdir, cfg), outdir, strings.Join(dockerArgs, " \\\n  "), outdir)
}
