package runner

import (
	"strings"
	"testing"

	"fold-portal/core/models"
)

func testJob(params map[string]interface{}) *models.Job {
	return &models.Job{
		ID:        "11111111-2222-3333-4444-555555555555",
		OwnerID:   "u1",
		Runner:    "boltz-2",
		Sequences: ">A\nMKV",
		Params:    params,
	}
}

func testDefaults() Defaults {
	return Defaults{
		JobBaseDir:        "/data/jobs",
		BoltzImage:        "registry.local/boltz:2",
		ChaiImage:         "registry.local/chai:1",
		LigandMPNNImage:   "registry.local/ligandmpnn:latest",
		BoltzGenImage:     "registry.local/boltzgen:latest",
		RFdiffusionImage:  "registry.local/rfdiffusion:latest",
		RFdiffusion3Image: "registry.local/rfdiffusion3:latest",
		BindCraftImage:    "registry.local/bindcraft:latest",
		BoltzCacheDir:     "/data/cache/boltz",
		ChaiCacheDir:      "/data/cache/chai",
	}
}

func TestBuildScriptDeterministic(t *testing.T) {
	reg := DefaultRegistry(testDefaults())
	job := testJob(map[string]interface{}{"use_msa_server": true, "recycling_steps": 5})
	cfg := &models.RunnerConfig{
		Enabled: true,
		GPUs:    1,
		ExtraEnv: map[string]string{
			"HTTPS_PROXY": "http://proxy:3128",
			"B_VAR":       "2",
			"A_VAR":       "1",
		},
	}

	for _, rn := range reg.All() {
		first := rn.BuildScript(job, cfg)
		for i := 0; i < 5; i++ {
			if got := rn.BuildScript(job, cfg); got != first {
				t.Fatalf("Runner %s produced a different script on rebuild", rn.Key())
			}
		}
	}
}

func TestBuildScriptSortsExtraEnv(t *testing.T) {
	rn := &Boltz{BaseDir: "/data/jobs", Image: "img", CacheDir: "/cache"}
	cfg := &models.RunnerConfig{
		Enabled:  true,
		ExtraEnv: map[string]string{"ZED": "z", "ALPHA": "a"},
	}
	script := rn.BuildScript(testJob(nil), cfg)

	alpha := strings.Index(script, "-e ALPHA=a")
	zed := strings.Index(script, "-e ZED=z")
	if alpha < 0 || zed < 0 {
		t.Fatalf("Expected both env flags in script:\n%s", script)
	}
	if alpha > zed {
		t.Error("Expected env flags in sorted key order")
	}
}

func TestSbatchHeaderOmitsZeroDirectives(t *testing.T) {
	job := testJob(nil)

	header := sbatchHeader("boltz", job, "/data/jobs/x/output", &models.RunnerConfig{
		Enabled: true,
		CPUs:    1, // the floor: no directive
	})
	for _, directive := range []string{"--partition", "--gres", "--cpus-per-task", "--mem", "--time"} {
		if strings.Contains(header, directive) {
			t.Errorf("Expected %s omitted for zero-value config, header:\n%s", directive, header)
		}
	}

	header = sbatchHeader("boltz", job, "/data/jobs/x/output", &models.RunnerConfig{
		Enabled:   true,
		Partition: "gpu",
		GPUs:      2,
		CPUs:      8,
		MemGB:     64,
		TimeLimit: "12:00:00",
	})
	for _, want := range []string{
		"#SBATCH --partition=gpu",
		"#SBATCH --gres=gpu:2",
		"#SBATCH --cpus-per-task=8",
		"#SBATCH --mem=64G",
		"#SBATCH --time=12:00:00",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("Expected %q in header:\n%s", want, header)
		}
	}
}

func TestBuildScriptNilConfig(t *testing.T) {
	reg := DefaultRegistry(testDefaults())
	job := testJob(nil)

	for _, rn := range reg.All() {
		script := rn.BuildScript(job, nil)
		if !strings.HasPrefix(script, "#!/bin/bash\n") {
			t.Errorf("Runner %s: expected shebang with nil config", rn.Key())
		}
		if !strings.Contains(script, job.ID) {
			t.Errorf("Runner %s: expected job id in script", rn.Key())
		}
	}
}

func TestBoltzScriptFlags(t *testing.T) {
	rn := &Boltz{BaseDir: "/data/jobs", Image: "registry.local/boltz:2", CacheDir: "/cache/boltz"}
	job := testJob(map[string]interface{}{
		"use_msa_server":    true,
		"output_format":     "mmcif",
		"diffusion_samples": float64(3),
	})

	script := rn.BuildScript(job, nil)
	for _, want := range []string{
		"--use_msa_server",
		"--output_format mmcif",
		"--diffusion_samples 3",
		"predict /work/input/sequences.fasta",
		"-v /data/jobs/" + job.ID + ":/work",
		"registry.local/boltz:2",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("Expected %q in script:\n%s", want, script)
		}
	}
	if strings.Contains(script, "--use_potentials") {
		t.Error("Expected unset use_potentials flag omitted")
	}
}

func TestConfigImageOverride(t *testing.T) {
	rn := &Boltz{BaseDir: "/data/jobs", Image: "default:img", CacheDir: "/cache"}
	cfg := &models.RunnerConfig{Enabled: true, ImageURI: "override:img"}

	script := rn.BuildScript(testJob(nil), cfg)
	if !strings.Contains(script, "override:img") {
		t.Error("Expected config image to override the default")
	}
	if strings.Contains(script, "default:img") {
		t.Error("Expected default image absent when overridden")
	}
}

func TestChaiRestraintsFlag(t *testing.T) {
	rn := &Chai{BaseDir: "/data/jobs", Image: "chai:1", CacheDir: "/cache/chai"}

	with := rn.BuildScript(testJob(map[string]interface{}{"has_restraints": true}), nil)
	if !strings.Contains(with, "restraints.csv") {
		t.Errorf("Expected restraint flag when has_restraints is set:\n%s", with)
	}

	without := rn.BuildScript(testJob(nil), nil)
	if strings.Contains(without, "restraints.csv") {
		t.Error("Expected no restraint flag without has_restraints")
	}
}

func TestRFdiffusionScriptQuotesContigs(t *testing.T) {
	rn := &RFdiffusion{BaseDir: "/data/jobs", Image: "rfd:latest"}
	job := testJob(map[string]interface{}{
		"mode":        "binder",
		"contigs":     "[A1-1000/0 70-100]",
		"num_designs": 5,
	})

	script := rn.BuildScript(job, nil)
	if !strings.Contains(script, "'contigmap.contigs=[A1-1000/0 70-100]'") {
		t.Errorf("Expected single-quoted contig override:\n%s", script)
	}
	if !strings.Contains(script, "inference.num_designs=5") {
		t.Errorf("Expected num_designs override:\n%s", script)
	}
}

func TestRFdiffusion3ScriptArgs(t *testing.T) {
	rn := &RFdiffusion3{BaseDir: "/data/jobs", Image: "rfd3:latest"}
	job := testJob(map[string]interface{}{
		"n_batches":   2,
		"num_designs": 4,
		"timesteps":   150,
		"step_scale":  float64(1.25),
	})

	script := rn.BuildScript(job, nil)
	for _, want := range []string{
		"rfd3 design",
		"inputs=/work/input/input_spec.json",
		"out_dir=/work/output",
		"n_batches=2",
		"diffusion_batch_size=4",
		"inference_sampler.num_timesteps=150",
		"inference_sampler.step_scale=1.25",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("Expected %q in script:\n%s", want, script)
		}
	}
	if strings.Contains(script, "inference_sampler.kind=symmetry") {
		t.Error("Expected no symmetry sampler for an asymmetric run")
	}

	symmetric := rn.BuildScript(testJob(map[string]interface{}{"symmetric": true}), nil)
	if !strings.Contains(symmetric, "inference_sampler.kind=symmetry") {
		t.Errorf("Expected symmetry sampler flag:\n%s", symmetric)
	}
}

func TestBindCraftScriptFlags(t *testing.T) {
	rn := &BindCraft{BaseDir: "/data/jobs", Image: "bc:latest"}

	with := rn.BuildScript(testJob(map[string]interface{}{
		"has_custom_filters":  true,
		"has_custom_advanced": true,
	}), nil)
	for _, want := range []string{
		"--settings /work/input/target_settings.json",
		"--filters /work/input/filters.json",
		"--advanced /work/input/advanced.json",
	} {
		if !strings.Contains(with, want) {
			t.Errorf("Expected %q in script:\n%s", want, with)
		}
	}

	without := rn.BuildScript(testJob(nil), nil)
	if strings.Contains(without, "--filters") || strings.Contains(without, "--advanced") {
		t.Error("Expected no custom settings flags without uploads")
	}
}

func TestLigandMPNNCheckpointSelection(t *testing.T) {
	rn := &LigandMPNN{BaseDir: "/data/jobs", Image: "lmpnn:latest"}

	protein := rn.BuildScript(testJob(map[string]interface{}{
		"model_variant": "protein_mpnn",
		"noise_level":   "020",
	}), nil)
	if !strings.Contains(protein, "--checkpoint_protein_mpnn /app/model_params/proteinmpnn_020.pt") {
		t.Errorf("Expected protein checkpoint flag:\n%s", protein)
	}

	ligand := rn.BuildScript(testJob(map[string]interface{}{
		"model_variant": "ligand_mpnn",
	}), nil)
	if !strings.Contains(ligand, "--checkpoint_ligand_mpnn /app/model_params/ligandmpnn_010.pt") {
		t.Errorf("Expected ligand checkpoint flag with default noise:\n%s", ligand)
	}
}

func TestBoltzGenProtocolFlag(t *testing.T) {
	rn := &BoltzGen{BaseDir: "/data/jobs", Image: "bg:latest"}

	synthesized := rn.BuildScript(testJob(map[string]interface{}{"protocol": "peptide-anything"}), nil)
	if !strings.Contains(synthesized, "--protocol peptide-anything") {
		t.Errorf("Expected protocol flag:\n%s", synthesized)
	}

	uploaded := rn.BuildScript(testJob(map[string]interface{}{"protocol": "yaml_upload"}), nil)
	if strings.Contains(uploaded, "--protocol") {
		t.Error("Expected no protocol flag for an uploaded spec")
	}
}
