package workload

import (
	"encoding/json"
	"path/filepath"

	"fold-portal/core/models"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// BindCraft designs de novo protein binders against a target structure
// (AlphaFold2 + MPNN + PyRosetta pipeline). The target settings document
// the pipeline consumes is generated from the normalized parameters;
// custom filter and advanced-settings JSON files may be supplied alongside.
type BindCraft struct{}

func (BindCraft) Key() string  { return "bindcraft" }
func (BindCraft) Name() string { return "BindCraft" }

func (BindCraft) Validate(input Raw) error {
	if input.Bytes("pdb_file") == nil {
		return NewValidationError("A target PDB structure file is required.")
	}
	return nil
}

func (BindCraft) Normalize(input Raw) models.InputPayload {
	files := map[string][]byte{}
	if pdb := input.Bytes("pdb_file"); pdb != nil {
		files["target.pdb"] = pdb
	}

	params := map[string]interface{}{}
	targetChain := input.String("target_chain")
	if targetChain == "" {
		targetChain = "A"
	}
	params["target_chain"] = targetChain
	if v := input.String("hotspot_residues"); v != "" {
		params["hotspot_residues"] = v
	}
	if v, ok := input.Int("length_min"); ok && v > 0 {
		params["length_min"] = v
	}
	if v, ok := input.Int("length_max"); ok && v > 0 {
		params["length_max"] = v
	}
	if v, ok := input.Int("number_of_final_designs"); ok && v > 0 {
		params["number_of_final_designs"] = v
	}

	if filters := input.Bytes("filters_file"); filters != nil {
		files["filters.json"] = filters
		params["has_custom_filters"] = true
	}
	if advanced := input.Bytes("advanced_file"); advanced != nil {
		files["advanced.json"] = advanced
		params["has_custom_advanced"] = true
	}

	return models.InputPayload{
		Sequences: "",
		Params:    params,
		Files:     files,
	}
}

func (BindCraft) RunnerKey(Raw) string { return "bindcraft" }

// PrepareWorkdir writes the uploaded files and generates
// input/target_settings.json for the pipeline. The binder name is derived
// from the workdir's final element, which is the job id.
func (b BindCraft) PrepareWorkdir(fs afero.Fs, workdir string, payload models.InputPayload) error {
	if err := WriteDefaultInputs(fs, workdir, payload); err != nil {
		return err
	}

	settings := map[string]interface{}{
		"design_path":             "/work/output",
		"binder_name":             "binder_" + filepath.Base(workdir),
		"starting_pdb":            "/work/input/target.pdb",
		"chains":                  stringParam(payload.Params, "target_chain", "A"),
		"target_hotspot_residues": stringParam(payload.Params, "hotspot_residues", ""),
		"lengths":                 []int{intParam(payload.Params, "length_min", 65), intParam(payload.Params, "length_max", 150)},
		"number_of_final_designs": intParam(payload.Params, "number_of_final_designs", 10),
	}

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal target settings")
	}
	path := filepath.Join(workdir, "input", "target_settings.json")
	if err := afero.WriteFile(fs, path, out, 0o644); err != nil {
		return errors.Wrap(err, "write target settings")
	}
	return nil
}

func stringParam(params map[string]interface{}, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

var _ WorkdirPreparer = BindCraft{}
