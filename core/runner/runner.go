// Package runner turns jobs into executable SLURM batch scripts, one
// builder per compute backend.
//
// Builders are pure with respect to everything except the runner config:
// the same (Job, RunnerConfig) pair always yields a byte-identical script.
// A nil config means all defaults; script building never fails just because
// no configuration row exists.
package runner

import "fold-portal/core/models"

// Runner builds batch submission scripts for one compute backend.
type Runner interface {
	Key() string
	Name() string

	// BuildScript returns the literal contents of the sbatch script for
	// the job. cfg may be nil.
	BuildScript(job *models.Job, cfg *models.RunnerConfig) string

	// Validate returns user-facing validation errors for the submission,
	// empty if valid.
	Validate(sequences string, params map[string]interface{}) []string
}

// Defaults carries the compiled-in environment the runners interpolate:
// the shared job root and per-backend container images and caches.
type Defaults struct {
	JobBaseDir string

	BoltzImage        string
	ChaiImage         string
	LigandMPNNImage   string
	BoltzGenImage     string
	RFdiffusionImage  string
	RFdiffusion3Image string
	BindCraftImage    string
	AlphaFoldImage    string

	BoltzCacheDir string
	ChaiCacheDir  string
}

// Registry holds the registered runners. Constructed once at startup and
// passed by reference to every consumer.
type Registry struct {
	runners map[string]Runner
	order   []string
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{runners: map[string]Runner{}}
}

// Register adds a runner. Duplicate keys panic; that is a wiring bug.
func (r *Registry) Register(rn Runner) {
	if rn.Key() == "" {
		panic("runner: runner with empty key")
	}
	if _, dup := r.runners[rn.Key()]; dup {
		panic("runner: duplicate key " + rn.Key())
	}
	r.runners[rn.Key()] = rn
	r.order = append(r.order, rn.Key())
}

// Get returns the runner for key.
func (r *Registry) Get(key string) (Runner, bool) {
	rn, ok := r.runners[key]
	return rn, ok
}

// All returns the registered runners in registration order.
func (r *Registry) All() []Runner {
	out := make([]Runner, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.runners[key])
	}
	return out
}

// DefaultRegistry returns a registry with every built-in runner.
func DefaultRegistry(d Defaults) *Registry {
	r := NewRegistry()
	r.Register(&Boltz{BaseDir: d.JobBaseDir, Image: d.BoltzImage, CacheDir: d.BoltzCacheDir})
	r.Register(&Chai{BaseDir: d.JobBaseDir, Image: d.ChaiImage, CacheDir: d.ChaiCacheDir})
	r.Register(&RFdiffusion{BaseDir: d.JobBaseDir, Image: d.RFdiffusionImage})
	r.Register(&RFdiffusion3{BaseDir: d.JobBaseDir, Image: d.RFdiffusion3Image})
	r.Register(&LigandMPNN{BaseDir: d.JobBaseDir, Image: d.LigandMPNNImage})
	r.Register(&BindCraft{BaseDir: d.JobBaseDir, Image: d.BindCraftImage})
	r.Register(&BoltzGen{BaseDir: d.JobBaseDir, Image: d.BoltzGenImage})
	r.Register(&AlphaFold{BaseDir: d.JobBaseDir})
	return r
}
