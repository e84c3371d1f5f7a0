package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// LigandMPNN runs ligand-aware inverse folding sequence design.
type LigandMPNN struct {
	BaseDir string
	Image   string
}

func (r *LigandMPNN) Key() string  { return "ligandmpnn" }
func (r *LigandMPNN) Name() string { return "LigandMPNN" }

func (r *LigandMPNN) Validate(_ string, params map[string]interface{}) []string {
	variant := paramString(params, "model_variant")
	if variant != "" && variant != "protein_mpnn" && variant != "ligand_mpnn" {
		return []string{fmt.Sprintf("Unknown model variant: %s", variant)}
	}
	return nil
}

func (r *LigandMPNN) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")
	image := configImage(cfg, r.Image)

	params := job.Params
	variant := paramString(params, "model_variant")
	if variant == "" {
		variant = "protein_mpnn"
	}
	noiseLevel := paramString(params, "noise_level")
	if noiseLevel == "" {
		noiseLevel = "010"
	}

	var ckptFlag string
	if variant == "protein_mpnn" {
		ckptFlag = fmt.Sprintf("--checkpoint_protein_mpnn /app/model_params/proteinmpnn_%s.pt", noiseLevel)
	} else {
		ckptFlag = fmt.Sprintf("--checkpoint_ligand_mpnn /app/model_params/ligandmpnn_%s.pt", noiseLevel)
	}

	flags := []string{fmt.Sprintf("--model_type %s", variant), ckptFlag}
	if v := paramString(params, "temperature"); v != "" {
		flags = append(flags, fmt.Sprintf("--sampling_temp %q", v))
	}
	if v := paramInt(params, "num_sequences", 0); v > 0 {
		flags = append(flags, fmt.Sprintf("--number_of_batches %d", v))
	}
	if hasParam(params, "seed") {
		flags = append(flags, fmt.Sprintf("--seed %d", paramInt(params, "seed", 0)))
	}
	if v := paramString(params, "chains_to_design"); v != "" {
		flags = append(flags, fmt.Sprintf("--chains_to_design %q", v))
	}
	if v := paramString(params, "fixed_residues"); v != "" {
		flags = append(flags, fmt.Sprintf("--fixed_positions %q", v))
	}

	dockerArgs := []string{
		"docker run --rm --gpus all",
	}
	dockerArgs = append(dockerArgs, configDockerArgs(cfg)...)
	dockerArgs = append(dockerArgs,
		fmt.Sprintf("-v %s:/work", workdir),
		image,
		"--pdb_path /work/input/input.pdb",
		"--out_folder /work/output",
		"--batch_size 1",
		strings.Join(flags, " \\\n  "),
	)

	return fmt.Sprintf(`%s

set -euo pipefail

mkdir -p %s

%s
`, sbatchHeader("ligandmpnn", job, outdir, cfg), outdir, strings.Join(dockerArgs, " \\\n  "))
}
