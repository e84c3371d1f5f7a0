package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"fold-portal/core/models"
)

// AlphaFold is a placeholder AlphaFold 3 backend. It writes a marker
// result so the full submit/poll/download path can be exercised before the
// real execution command lands.
// TODO: replace the stub body with the containerized AF3 invocation once
// the weights distribution is sorted out.
type AlphaFold struct {
	BaseDir string
}

func (r *AlphaFold) Key() string  { return "alphafold3" }
func (r *AlphaFold) Name() string { return "AlphaFold 3" }

func (r *AlphaFold) Validate(sequences string, _ map[string]interface{}) []string {
	if strings.TrimSpace(sequences) == "" {
		return []string{"Sequences are required."}
	}
	return nil
}

func (r *AlphaFold) BuildScript(job *models.Job, cfg *models.RunnerConfig) string {
	workdir := job.Workdir(r.BaseDir)
	outdir := filepath.Join(workdir, "output")

	return fmt.Sprintf(`%s

set -euo pipefail

cd %s
mkdir -p output

echo "AlphaFold stub runner. Replace this with real AlphaFold execution." > output/README.txt
echo "job_id=%s" >> output/README.txt
echo "runner=%s" >> output/README.txt

sleep 2
echo "done" > output/status.txt
`, sbatchHeader("af3", job, outdir, cfg), workdir, job.ID, r.Key())
}
