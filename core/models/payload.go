package models

// InputPayload is the canonical payload every workload type produces from
// raw submission input. It is the sole contract between input collection
// and the orchestration core.
type InputPayload struct {
	// Sequences is FASTA text; empty string for workloads without FASTA input.
	Sequences string

	// Params holds workload-specific parameters, stored on Job.Params.
	Params map[string]interface{}

	// Files maps filename -> content for uploads written to the job workdir.
	Files map[string][]byte
}

// StoredPayload is the JSON-safe form of InputPayload persisted on the job
// ledger: file contents are replaced by the list of filenames.
type StoredPayload struct {
	Sequences string                 `json:"sequences"`
	Params    map[string]interface{} `json:"params"`
	Files     []string               `json:"files"`
}

// ForStorage strips binary file content from the payload, keeping filenames
// only. Filenames are returned in map iteration order; callers that need a
// stable order sort the result.
func (p InputPayload) ForStorage() StoredPayload {
	stored := StoredPayload{
		Sequences: p.Sequences,
		Params:    p.Params,
		Files:     make([]string, 0, len(p.Files)),
	}
	if stored.Params == nil {
		stored.Params = map[string]interface{}{}
	}
	for name := range p.Files {
		stored.Files = append(stored.Files, name)
	}
	return stored
}
