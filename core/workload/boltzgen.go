package workload

import (
	"path/filepath"
	"strings"

	"fold-portal/core/models"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// BoltzGen designs protein and peptide binders. Most protocols take a
// target structure plus scalar parameters and synthesize the design
// specification; the yaml_upload protocol accepts a pre-built spec.
type BoltzGen struct{}

func (BoltzGen) Key() string  { return "boltzgen" }
func (BoltzGen) Name() string { return "BoltzGen" }

func (BoltzGen) Validate(input Raw) error {
	protocol := boltzgenProtocol(input)
	if protocol == "yaml_upload" {
		if input.Bytes("yaml_file") == nil {
			return NewValidationError("A design YAML file is required.")
		}
		return nil
	}
	if input.Bytes("target_file") == nil {
		return NewValidationError("A target structure file is required.")
	}
	return nil
}

func (BoltzGen) Normalize(input Raw) models.InputPayload {
	protocol := boltzgenProtocol(input)
	files := map[string][]byte{}
	params := map[string]interface{}{"protocol": protocol}

	if protocol == "yaml_upload" {
		if spec := input.Bytes("yaml_file"); spec != nil {
			files["design.yaml"] = spec
		}
		return models.InputPayload{Params: params, Files: files}
	}

	if target := input.Bytes("target_file"); target != nil {
		name := input.String("target_filename")
		ext := "pdb"
		if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
			ext = name[i+1:]
		}
		filename := "target." + ext
		files[filename] = target
		params["target_filename"] = filename
	}

	chains := input.String("target_chains")
	if chains == "" {
		chains = "A"
	}
	params["target_chains"] = chains
	params["num_designs"] = input.IntOr("num_designs", 100)
	params["budget"] = input.IntOr("budget", 10)
	if v, ok := input["alpha"].(float64); ok {
		params["alpha"] = v
	} else {
		params["alpha"] = 0.001
	}

	switch protocol {
	case "protein-anything", "protein-small_molecule":
		params["length_min"] = input.IntOr("binder_length_min", 80)
		params["length_max"] = input.IntOr("binder_length_max", 150)
	case "peptide-anything":
		params["length_min"] = input.IntOr("peptide_length_min", 8)
		params["length_max"] = input.IntOr("peptide_length_max", 20)
	}

	return models.InputPayload{Params: params, Files: files}
}

func (BoltzGen) RunnerKey(Raw) string { return "boltzgen" }

// PrepareWorkdir writes the uploaded inputs and, for protocol modes,
// generates input/design.yaml from the normalized parameters.
func (b BoltzGen) PrepareWorkdir(fs afero.Fs, workdir string, payload models.InputPayload) error {
	if err := WriteDefaultInputs(fs, workdir, payload); err != nil {
		return err
	}

	protocol, _ := payload.Params["protocol"].(string)
	// For yaml_upload the uploaded spec is already on disk.
	if protocol == "yaml_upload" {
		return nil
	}

	targetFilename, _ := payload.Params["target_filename"].(string)
	if targetFilename == "" {
		targetFilename = "target.pdb"
	}
	chainsRaw, _ := payload.Params["target_chains"].(string)
	var chains []string
	for _, c := range strings.Split(chainsRaw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			chains = append(chains, c)
		}
	}

	spec := map[string]interface{}{
		"protocol": protocol,
		"target": map[string]interface{}{
			"structure": "/work/input/" + targetFilename,
			"chains":    chains,
		},
		"num_designs": payload.Params["num_designs"],
		"budget":      payload.Params["budget"],
		"alpha":       payload.Params["alpha"],
	}
	if lengthMin, ok := payload.Params["length_min"]; ok {
		spec["binder"] = map[string]interface{}{
			"length_min": lengthMin,
			"length_max": payload.Params["length_max"],
		}
	}

	out, err := yaml.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "marshal design spec")
	}
	path := filepath.Join(workdir, "input", "design.yaml")
	if err := afero.WriteFile(fs, path, out, 0o644); err != nil {
		return errors.Wrap(err, "write design spec")
	}
	return nil
}

func boltzgenProtocol(input Raw) string {
	if p := input.String("protocol"); p != "" {
		return p
	}
	return "protein-anything"
}

var _ WorkdirPreparer = BoltzGen{}
