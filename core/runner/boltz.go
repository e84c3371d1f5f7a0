package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// Boltz runs Boltz-2 structure and affinity prediction.
type Boltz struct {
	BaseDir  string
	Image    string
	CacheDir string
}

func (r *Boltz) Key() string  { return "boltz-2" }
func (r *Boltz) Name() string { return "Boltz-2" }

func (r *Boltz) Validate(sequences string, _ map[string]interface{}) []string {
	if strings.TrimSpace(sequences) == "" {
		return []string{"Sequences are required."}
	}
	return nil
}

func (r *Boltz) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	var flags []string
	if paramBool(job.Params, "use_msa_server") {
		flags = append(flags, "--use_msa_server")
	}
	if paramBool(job.Params, "use_potentials") {
		flags = append(flags, "--use_potentials")
	}
	if v := paramString(job.Params, "output_format"); v != "" {
		flags = append(flags, "--output_format", v)
	}
	if v := paramInt(job.Params, "recycling_steps", 0); v > 0 {
		flags = append(flags, "--recycling_steps", fmt.Sprint(v))
	}
	if v := paramInt(job.Params, "sampling_steps", 0); v > 0 {
		flags = append(flags, "--sampling_steps", fmt.Sprint(v))
	}
	if v := paramInt(job.Params, "diffusion_samples", 0); v > 0 {
		flags = append(flags, "--diffusion_samples", fmt.Sprint(v))
	}

	dockerArgs := []string{
		"docker run --rm --gpus all",
		"-e BOLTZ_CACHE=/cache",
		"-e BOLTZ_MSA_USERNAME",
		"-e BOLTZ_MSA_PASSWORD",
	}
	dockerArgs = append(dockerArgs, configDockerArgs(cfg)...)
	dockerArgs = append(dockerArgs,
		fmt.Sprintf("-v %s:/work", workdir),
		fmt.Sprintf("-v %s:/cache", r.CacheDir),
		image,
		strings.TrimRight("predict /work/input/sequences.fasta --out_dir /work/output --cache /cache "+strings.Join(flags, " "), " "),
	)

	return fmt.Sprintf(`%s

set -euo pipefail

mkdir -p %s %s

%s
`, sbatchHeader("boltz", job, outdir, cfg), outdir, r.CacheDir, strings.Join(dockerArgs, " \\\n  "))
}
