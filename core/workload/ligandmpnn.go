package workload

import "fold-portal/core/models"

// LigandMPNN designs amino acid sequences with ligand-aware inverse
// folding.
type LigandMPNN struct{}

func (LigandMPNN) Key() string  { return "ligand_mpnn" }
func (LigandMPNN) Name() string { return "LigandMPNN" }

func (LigandMPNN) Validate(input Raw) error {
	if input.Bytes("pdb_file") == nil {
		return NewValidationError("A PDB structure file is required.")
	}
	return nil
}

func (LigandMPNN) Normalize(input Raw) models.InputPayload {
	files := map[string][]byte{}
	if pdb := input.Bytes("pdb_file"); pdb != nil {
		files["input.pdb"] = pdb
	}

	variant := input.String("model_variant")
	if variant == "" {
		variant = "ligand_mpnn"
	}
	params := map[string]interface{}{"model_variant": variant}
	if v := input.String("noise_level"); v != "" {
		params["noise_level"] = v
	}
	if v := input.String("temperature"); v != "" {
		params["temperature"] = v
	}
	if v, ok := input.Int("num_sequences"); ok && v > 0 {
		params["num_sequences"] = v
	}
	if v := input.String("chains_to_design"); v != "" {
		params["chains_to_design"] = v
	}
	if v := input.String("fixed_residues"); v != "" {
		params["fixed_residues"] = v
	}
	if v, ok := input.Int("seed"); ok {
		params["seed"] = v
	}

	return models.InputPayload{
		Sequences: "",
		Params:    params,
		Files:     files,
	}
}

func (LigandMPNN) RunnerKey(Raw) string { return "ligandmpnn" }
