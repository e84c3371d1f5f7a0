package workload

import (
	"fmt"
	"strings"

	"fold-portal/core/models"
)

// RFdiffusion generates protein backbones. Supports unconditional
// generation, binder design, motif scaffolding, partial diffusion, and
// symmetric oligomers; the mode drives which inputs matter and how the
// contig string is synthesized.
type RFdiffusion struct{}

func (RFdiffusion) Key() string  { return "rfdiffusion" }
func (RFdiffusion) Name() string { return "RFdiffusion" }

func (RFdiffusion) Validate(input Raw) error {
	if input.String("mode") == "partial" {
		partialT := input.IntOr("partial_T", 0)
		timesteps := input.IntOr("timesteps", 50)
		if partialT > 0 && partialT >= timesteps {
			return NewValidationError(
				"partial_T (%d) must be less than timesteps (%d).", partialT, timesteps)
		}
	}
	return nil
}

func (RFdiffusion) Normalize(input Raw) models.InputPayload {
	mode := input.String("mode")
	if mode == "" {
		mode = "unconditional"
	}

	files := map[string][]byte{}
	params := map[string]interface{}{
		"mode":        mode,
		"num_designs": input.IntOr("num_designs", 10),
		"timesteps":   input.IntOr("timesteps", 50),
	}

	switch mode {
	case "unconditional":
		lengthMin := input.IntOr("length_min", 100)
		lengthMax := input.IntOr("length_max", 200)
		params["contigs"] = fmt.Sprintf("[%d-%d]", lengthMin, lengthMax)

	case "binder":
		if pdb := input.Bytes("target_pdb"); pdb != nil {
			files["target.pdb"] = pdb
		}
		targetChain := input.String("target_chain")
		if targetChain == "" {
			targetChain = "A"
		}
		binderMin := input.IntOr("binder_length_min", 70)
		binderMax := input.IntOr("binder_length_max", 100)
		// Target chain first (large residue bound, clipped to the actual
		// chain length at runtime), then the binder range.
		params["contigs"] = fmt.Sprintf("[%s1-1000/0 %d-%d]", targetChain, binderMin, binderMax)
		if hotspot := input.String("hotspot_residues"); hotspot != "" {
			params["hotspot_residues"] = hotspot
		}

	case "motif", "partial":
		if pdb := input.Bytes("input_pdb"); pdb != nil {
			files["input.pdb"] = pdb
		}
		contigs := input.String("contigs")
		// Auto-wrap in brackets if the user forgot.
		if contigs != "" && !strings.HasPrefix(contigs, "[") {
			contigs = "[" + contigs + "]"
		}
		params["contigs"] = contigs
		if mode == "partial" {
			if v, ok := input.Int("partial_T"); ok {
				params["partial_T"] = v
			}
		}

	case "symmetric":
		symmetryType := input.String("symmetry_type")
		if symmetryType == "" {
			symmetryType = "cyclic"
		}
		subunitLength := input.IntOr("subunit_length", 100)
		params["symmetry_type"] = symmetryType
		params["symmetry_order"] = input.IntOr("symmetry_order", 3)
		params["contigs"] = fmt.Sprintf("[%d-%d]", subunitLength, subunitLength)
	}

	return models.InputPayload{
		Sequences: "",
		Params:    params,
		Files:     files,
	}
}

func (RFdiffusion) RunnerKey(Raw) string { return "rfdiffusion" }
