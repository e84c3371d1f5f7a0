package workload

import "fold-portal/core/models"

// Passthrough is the generic runner-based submission: free-form sequence
// text handed to whichever enabled runner the caller names. Used for
// backends without a dedicated workload type (e.g. the AlphaFold 3 stub)
// and for ad hoc administrative submissions.
type Passthrough struct{}

func (Passthrough) Key() string  { return "runner" }
func (Passthrough) Name() string { return "Runner-based submission" }

func (Passthrough) Validate(input Raw) error {
	if input.String("runner") == "" {
		return NewValidationError("A runner must be selected.")
	}
	return nil
}

func (Passthrough) Normalize(input Raw) models.InputPayload {
	return models.InputPayload{
		Sequences: input.String("sequences"),
		Params:    map[string]interface{}{},
		Files:     map[string][]byte{},
	}
}

func (Passthrough) RunnerKey(input Raw) string {
	return input.String("runner")
}
