package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// Chai runs Chai-1 structure prediction.
type Chai struct {
	BaseDir  string
	Image    string
	CacheDir string
}

func (r *Chai) Key() string  { return "chai-1" }
func (r *Chai) Name() string { return "Chai-1" }

func (r *Chai) Validate(sequences string, _ map[string]interface{}) []string {
	if strings.TrimSpace(sequences) == "" {
		return []string{"Sequences are required."}
	}
	return nil
}

func (r *Chai) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	var flags []string
	if paramBool(job.Params, "use_msa_server") {
		flags = append(flags, "--use-msa-server")
	}
	if v := paramInt(job.Params, "num_diffn_samples", 0); v > 0 {
		flags = append(flags, "--num-diffn-samples", fmt.Sprint(v))
	}
	if hasParam(job.Params, "seed") {
		flags = append(flags, "--seed", fmt.Sprint(paramInt(job.Params, "seed", 0)))
	}
	// Restraints are recorded on the params at normalization time, so the
	// script stays a pure function of (job, config).
	if paramBool(job.Params, "has_restraints") {
		flags = append(flags, "--constraint-path /work/input/restraints.csv")
	}

	dockerArgs := []string{
		"docker run --rm --gpus all",
		"-e CHAI_DOWNLOADS_DIR=/cache",
	}
	dockerArgs = append(dockerArgs, configDockerArgs(cfg)...)
	dockerArgs = append(dockerArgs,
		fmt.Sprintf("-v %s:/work", workdir),
		fmt.Sprintf("-v %s:/cache", r.CacheDir),
		image,
		strings.TrimRight("fold /work/input/sequences.fasta /work/output "+strings.Join(flags, " "), " "),
	)

	return fmt.Sprintf(`%s

set -euo pipefail

mkdir -p %s %s

%s
`, sbatchHeader("chai", job, outdir, cfg), outdir, r.CacheDir, strings.Join(dockerArgs, " \\\n  "))
}
