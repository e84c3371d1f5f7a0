package workload

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// RFdiffusion3 runs all-atom protein design with RFdiffusion3: protein,
// small-molecule and nucleic-acid binder design, enzyme design, motif
// scaffolding, partial diffusion, symmetric design, and unconditional
// generation. Each mode synthesizes the rfd3 input specification; the
// json_upload mode accepts a pre-built one.
type RFdiffusion3 struct{}

func (RFdiffusion3) Key() string  { return "rfdiffusion3" }
func (RFdiffusion3) Name() string { return "RFdiffusion3" }

func (RFdiffusion3) Validate(input Raw) error {
	if input.String("mode") == "partial" {
		if t := input.FloatOr("partial_t", 10); t <= 0 {
			return NewValidationError("partial_t must be positive.")
		}
	}
	return nil
}

func (RFdiffusion3) Normalize(input Raw) models.InputPayload {
	mode := input.String("mode")
	if mode == "" {
		mode = "unconditional"
	}

	files := map[string][]byte{}
	params := map[string]interface{}{
		"mode":        mode,
		"num_designs": input.IntOr("num_designs", 8),
		"n_batches":   input.IntOr("n_batches", 1),
		"timesteps":   input.IntOr("timesteps", 200),
		"step_scale":  input.FloatOr("step_scale", 1.5),
	}

	inputSpec := map[string]interface{}{}

	switch mode {
	case "unconditional":
		span := fmt.Sprintf("%d-%d", input.IntOr("length_min", 50), input.IntOr("length_max", 200))
		inputSpec["design"] = map[string]interface{}{
			"contig": span,
			"length": span,
		}

	case "protein_binder":
		if pdb := input.Bytes("target_pdb"); pdb != nil {
			files["target.pdb"] = pdb
		}
		targetChain := input.String("target_chain")
		if targetChain == "" {
			targetChain = "A"
		}
		design := map[string]interface{}{
			"input": "target.pdb",
			"contig": fmt.Sprintf("%s1-1000,/0,%d-%d",
				targetChain, input.IntOr("binder_length_min", 40), input.IntOr("binder_length_max", 120)),
			"is_non_loopy": boolOr(input, "is_non_loopy", true),
		}
		if hotspot := input.String("hotspot_residues"); hotspot != "" {
			design["select_hotspots"] = map[string]interface{}{"residues": splitResidues(hotspot)}
			design["infer_ori_strategy"] = "hotspots"
		}
		inputSpec["design"] = design

	case "small_molecule_binder":
		if pdb := input.Bytes("target_pdb"); pdb != nil {
			files["target.pdb"] = pdb
		}
		span := fmt.Sprintf("%d-%d", input.IntOr("binder_length_min", 50), input.IntOr("binder_length_max", 150))
		inputSpec["design"] = map[string]interface{}{
			"input":  "target.pdb",
			"ligand": input.String("ligand_name"),
			"contig": "A1-1000,/0," + span,
			"length": span,
		}

	case "nucleic_acid_binder":
		if pdb := input.Bytes("target_pdb"); pdb != nil {
			files["target.pdb"] = pdb
		}
		targetChain := input.String("target_chain")
		if targetChain == "" {
			targetChain = "B"
		}
		span := fmt.Sprintf("%d-%d", input.IntOr("binder_length_min", 50), input.IntOr("binder_length_max", 150))
		inputSpec["design"] = map[string]interface{}{
			"input":  "target.pdb",
			"contig": fmt.Sprintf("%s1-1000,/0,%s", targetChain, span),
			"length": span,
		}

	case "enzyme":
		if pdb := input.Bytes("target_pdb"); pdb != nil {
			files["target.pdb"] = pdb
		}
		span := fmt.Sprintf("%d-%d", input.IntOr("scaffold_length_min", 100), input.IntOr("scaffold_length_max", 300))
		design := map[string]interface{}{
			"input":  "target.pdb",
			"ligand": input.String("ligand_name"),
			"contig": "A1-1000,/0," + span,
			"length": span,
		}
		if catalytic := input.String("catalytic_residues"); catalytic != "" {
			design["select_fixed_atoms"] = map[string]interface{}{"residues": splitResidues(catalytic)}
		}
		inputSpec["design"] = design

	case "motif":
		if pdb := input.Bytes("input_pdb"); pdb != nil {
			files["input.pdb"] = pdb
		}
		design := map[string]interface{}{
			"input":  "input.pdb",
			"contig": input.String("contigs"),
		}
		lengthMin := input.IntOr("length_min", 0)
		lengthMax := input.IntOr("length_max", 0)
		if lengthMin > 0 && lengthMax > 0 {
			design["length"] = fmt.Sprintf("%d-%d", lengthMin, lengthMax)
		}
		inputSpec["design"] = design

	case "partial":
		if pdb := input.Bytes("input_pdb"); pdb != nil {
			files["input.pdb"] = pdb
		}
		inputSpec["design"] = map[string]interface{}{
			"input":     "input.pdb",
			"contig":    input.String("contigs"),
			"partial_t": input.FloatOr("partial_t", 10),
		}

	case "symmetric":
		inputSpec["design"] = map[string]interface{}{
			"contig":   input.String("contigs"),
			"symmetry": map[string]interface{}{"type": input.String("symmetry_type")},
		}
		params["symmetric"] = true

	case "json_upload":
		if raw := input.Bytes("input_json"); raw != nil {
			files["input_spec.json"] = raw
			// Keep a parsed copy on the params when the upload is valid
			// JSON; rfd3 deals with anything else itself.
			var parsed map[string]interface{}
			if err := json.Unmarshal(raw, &parsed); err == nil {
				inputSpec = parsed
			}
		}
	}

	params["input_spec"] = inputSpec

	return models.InputPayload{
		Sequences: "",
		Params:    params,
		Files:     files,
	}
}

func (RFdiffusion3) RunnerKey(Raw) string { return "rfdiffusion3" }

// PrepareWorkdir writes the uploaded inputs and, for synthesized modes,
// input/input_spec.json from the normalized parameters.
func (r RFdiffusion3) PrepareWorkdir(fs afero.Fs, workdir string, payload models.InputPayload) error {
	if err := WriteDefaultInputs(fs, workdir, payload); err != nil {
		return err
	}

	mode, _ := payload.Params["mode"].(string)
	// The uploaded spec is already on disk for json_upload.
	if mode == "json_upload" {
		return nil
	}

	spec, _ := payload.Params["input_spec"].(map[string]interface{})
	if len(spec) == 0 {
		return nil
	}
	out, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal input spec")
	}
	path := filepath.Join(workdir, "input", "input_spec.json")
	if err := afero.WriteFile(fs, path, out, 0o644); err != nil {
		return errors.Wrap(err, "write input spec")
	}
	return nil
}

func splitResidues(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func boolOr(input Raw, key string, def bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return def
}

var _ WorkdirPreparer = RFdiffusion3{}
