package runner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"fold-portal/core/models"
)

// BoltzGen runs BoltzGen binder design against the generated (or uploaded)
// design specification.
type BoltzGen struct {
	BaseDir string
	Image   string
}

func (r *BoltzGen) Key() string  { return "boltzgen" }
func (r *BoltzGen) Name() string { return "BoltzGen" }

func (r *BoltzGen) Validate(_ string, _ map[string]interface{}) []string {
	return nil
}

func (r *BoltzGen) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	params := job.Params
	protocol := paramString(params, "protocol")
	if protocol == "" {
		protocol = "protein-anything"
	}

	cmdArgs := []string{
		"boltzgen run /work/input/design.yaml",
		"--output /work/output",
	}
	// --protocol only applies when the spec was synthesized, not uploaded.
	if protocol != "yaml_upload" {
		cmdArgs = append(cmdArgs, fmt.Sprintf("--protocol %s", protocol))
	}
	cmdArgs = append(cmdArgs,
		fmt.Sprintf("--num_designs %d", paramInt(params, "num_designs", 100)),
		fmt.Sprintf("--budget %d", paramInt(params, "budget", 10)),
		fmt.Sprintf("--alpha %s", strconv.FormatFloat(paramFloat(params, "alpha", 0.001), 'g', -1, 64)),
	)

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
`, sbatchHeader("boltzgen", job, outdir, cfg), outdir, strings.Join(dockerArgs, " \\\n  "), outdir)
}
