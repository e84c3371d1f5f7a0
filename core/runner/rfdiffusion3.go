package runner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"fold-portal/core/models"
)

// RFdiffusion3 runs all-atom rfd3 design against the generated (or
// uploaded) input specification.
type RFdiffusion3 struct {
	BaseDir string
	Image   string
}

func (r *RFdiffusion3) Key() string  { return "rfdiffusion3" }
func (r *RFdiffusion3) Name() string { return "RFdiffusion3" }

func (r *RFdiffusion3) Validate(_ string, _ map[string]interface{}) []string {
	return nil
}

func (r *RFdiffusion3) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	params := job.Params
	cmdArgs := []string{
		"rfd3 design",
		"out_dir=/work/output",
		"inputs=/work/input/input_spec.json",
		fmt.Sprintf("n_batches=%d", paramInt(params, "n_batches", 1)),
		fmt.Sprintf("diffusion_batch_size=%d", paramInt(params, "num_designs", 8)),
		fmt.Sprintf("inference_sampler.num_timesteps=%d", paramInt(params, "timesteps", 200)),
		fmt.Sprintf("inference_sampler.step_scale=%s",
			strconv.FormatFloat(paramFloat(params, "step_scale", 1.5), 'g', -1, 64)),
	}
	if paramBool(params, "symmetric") {
		cmdArgs = append(cmdArgs, "inference_sampler.kind=symmetry")
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
`, sbatchHeader("rfdiffusion3", job, outdir, cfg), outdir, strings.Join(dockerArgs, " \\\n  "), outdir)
}
