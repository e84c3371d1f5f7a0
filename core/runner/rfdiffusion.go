package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// RFdiffusion runs RFdiffusion backbone generation. The command line is a
// set of Hydra overrides derived from the normalized submission params.
type RFdiffusion struct {
	BaseDir string
	Image   string
}

func (r *RFdiffusion) Key() string  { return "rfdiffusion" }
func (r *RFdiffusion) Name() string { return "RFdiffusion" }

func (r *RFdiffusion) Validate(_ string, params map[string]interface{}) []string {
	mode := paramString(params, "mode")
	if mode != "unconditional" && mode != "symmetric" && paramString(params, "contigs") == "" {
		return []string{"A contig specification is required for this mode."}
	}
	return nil
}

func (r *RFdiffusion) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	params := job.Params
	mode := paramString(params, "mode")
	if mode == "" {
		mode = "unconditional"
	}

	overrides := []string{
		"inference.output_prefix=/work/output/design",
		"inference.model_directory_path=/app/RFdiffusion/models",
		fmt.Sprintf("inference.num_designs=%d", paramInt(params, "num_designs", 10)),
		fmt.Sprintf("diffuser.T=%d", paramInt(params, "timesteps", 50)),
	}

	switch mode {
	case "binder":
		overrides = append(overrides, "inference.input_pdb=/work/input/target.pdb")
	case "motif", "partial":
		overrides = append(overrides, "inference.input_pdb=/work/input/input.pdb")
	}

	// Contigs are single-quoted to keep the shell from expanding brackets.
	if contigs := paramString(params, "contigs"); contigs != "" {
		overrides = append(overrides, fmt.Sprintf("'contigmap.contigs=%s'", contigs))
	}

	if hotspot := paramString(params, "hotspot_residues"); hotspot != "" {
		if !strings.HasPrefix(hotspot, "[") {
			hotspot = "[" + hotspot + "]"
		}
		overrides = append(overrides, fmt.Sprintf("'ppi.hotspot_res=%s'", hotspot))
	}

	if mode == "partial" {
		overrides = append(overrides, fmt.Sprintf("diffuser.partial_T=%d", paramInt(params, "partial_T", 10)))
	}

	configName := "base"
	if mode == "symmetric" {
		configName = "symmetry"
		overrides = append(overrides,
			fmt.Sprintf("inference.symmetry=%s", paramString(params, "symmetry_type")),
			fmt.Sprintf("inference.symmetry_order=%d", paramInt(params, "symmetry_order", 3)),
		)
	}

	dockerArgs := []string{
		"docker run --rm --gpus all",
		fmt.Sprintf("-v %s:/work", workdir),
	}
	dockerArgs = append(dockerArgs, configDockerArgs(cfg)...)
	dockerArgs = append(dockerArgs,
		"-e PYTHONUNBUFFERED=1",
		image,
		fmt.Sprintf("--config-name %s \\\n    %s", configName, strings.Join(overrides, " \\\n    ")),
	)

	return fmt.Sprintf(`%s

set -euo pipefail

mkdir -p %s

%s

# Ensure output is readable by the portal
chmod -R a+rX %s 2>/dev/null || true
`, sbatchHeader("rfdiffusion", job, outdir, cfg), outdir, strings.Join(dockerArgs, " \\\n  "), outdir)
}
