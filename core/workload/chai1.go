package workload

import "fold-portal/core/models"

// Chai1 predicts biomolecular structure with Chai-1: proteins, nucleic
// acids, small molecules, and multimeric complexes.
type Chai1 struct{}

func (Chai1) Key() string  { return "chai1" }
func (Chai1) Name() string { return "Chai-1" }

func (Chai1) Validate(input Raw) error {
	if input.String("sequences") == "" && input.Bytes("fasta_file") == nil {
		return NewValidationError("Provide sequences or a FASTA file.")
	}
	return nil
}

func (Chai1) Normalize(input Raw) models.InputPayload {
	sequences := input.String("sequences")
	// An uploaded FASTA file replaces the textarea sequences.
	if fasta := input.Bytes("fasta_file"); fasta != nil {
		sequences = string(fasta)
	}

	params := map[string]interface{}{}
	if input.Bool("use_msa_server") {
		params["use_msa_server"] = true
	}
	if v, ok := input.Int("num_diffn_samples"); ok && v > 0 {
		params["num_diffn_samples"] = v
	}
	if v, ok := input.Int("seed"); ok {
		params["seed"] = v
	}

	files := map[string][]byte{}
	// Optional restraints file, stored under a predictable name.
	if restraints := input.Bytes("restraints_file"); restraints != nil {
		files["restraints.csv"] = restraints
		params["has_restraints"] = true
	}

	return models.InputPayload{
		Sequences: sequences,
		Params:    params,
		Files:     files,
	}
}

func (Chai1) RunnerKey(Raw) string { return "chai-1" }
