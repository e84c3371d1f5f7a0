package workload

import (
	"path/filepath"

	"fold-portal/core/models"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// SequencesFileName is the fixed filename sequence text is written to.
const SequencesFileName = "sequences.fasta"

// WorkdirPreparer is implemented by workload types that need to emit
// derived files beyond the default payload materialization.
type WorkdirPreparer interface {
	PrepareWorkdir(fs afero.Fs, workdir string, payload models.InputPayload) error
}

// PrepareWorkdir materializes a payload under the job workdir. If the
// workload type implements WorkdirPreparer it takes over entirely;
// otherwise the default is applied: sequences to input/sequences.fasta when
// non-empty, and every uploaded file verbatim under input/.
func PrepareWorkdir(fs afero.Fs, t Type, workdir string, payload models.InputPayload) error {
	if p, ok := t.(WorkdirPreparer); ok {
		return p.PrepareWorkdir(fs, workdir, payload)
	}
	return WriteDefaultInputs(fs, workdir, payload)
}

// WriteDefaultInputs is the default workdir materialization. Overriding
// types call it before emitting their derived files.
func WriteDefaultInputs(fs afero.Fs, workdir string, payload models.InputPayload) error {
	inputDir := filepath.Join(workdir, "input")
	if err := fs.MkdirAll(inputDir, 0o755); err != nil {
		return errors.Wrap(err, "create input dir")
	}

	if payload.Sequences != "" {
		path := filepath.Join(inputDir, SequencesFileName)
		if err := afero.WriteFile(fs, path, []byte(payload.Sequences), 0o644); err != nil {
			return errors.Wrap(err, "write sequences")
		}
	}

	for name, content := range payload.Files {
		path := filepath.Join(inputDir, filepath.Base(name))
		if err := afero.WriteFile(fs, path, content, 0o644); err != nil {
			return errors.Wrapf(err, "write input file %s", name)
		}
	}
	return nil
}
