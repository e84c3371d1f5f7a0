package workload

import "fold-portal/core/models"

// Boltz2 predicts biomolecular structure and binding affinity with Boltz-2.
type Boltz2 struct{}

func (Boltz2) Key() string  { return "boltz2" }
func (Boltz2) Name() string { return "Boltz-2" }

func (Boltz2) Validate(input Raw) error {
	if input.String("sequences") == "" {
		return NewValidationError("Sequences are required.")
	}
	return nil
}

func (Boltz2) Normalize(input Raw) models.InputPayload {
	params := map[string]interface{}{}
	if input.Bool("use_msa_server") {
		params["use_msa_server"] = true
	}
	if input.Bool("use_potentials") {
		params["use_potentials"] = true
	}
	if v := input.String("output_format"); v != "" {
		params["output_format"] = v
	}
	if v, ok := input.Int("recycling_steps"); ok && v > 0 {
		params["recycling_steps"] = v
	}
	if v, ok := input.Int("sampling_steps"); ok && v > 0 {
		params["sampling_steps"] = v
	}
	if v, ok := input.Int("diffusion_samples"); ok && v > 0 {
		params["diffusion_samples"] = v
	}

	return models.InputPayload{
		Sequences: input.String("sequences"),
		Params:    params,
		Files:     map[string][]byte{},
	}
}

func (Boltz2) RunnerKey(Raw) string { return "boltz-2" }
