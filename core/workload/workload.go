// Package workload normalizes heterogeneous scientific submission inputs
// into the canonical payload the orchestration core operates on.
//
// Each workload type converts raw form-like input into an InputPayload,
// performs cross-field domain validation, and resolves which runner the
// submission targets. Required-field presence is the caller's
// responsibility; workload types only check domain constraints.
package workload

import (
	"fmt"
	"strings"

	"fold-portal/core/models"
)

// Raw is the form-like input a workload type normalizes. Values are
// whatever the collection layer produced: strings, numbers, bools, and
// []byte for uploaded files.
type Raw map[string]interface{}

// String returns the trimmed string value for key, or "".
func (r Raw) String(key string) string {
	if v, ok := r[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Bool returns the bool value for key, or false.
func (r Raw) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// Int returns the integer value for key and whether one was present.
// JSON-decoded numbers arrive as float64 and are accepted.
func (r Raw) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// IntOr returns the integer value for key, or def when absent.
func (r Raw) IntOr(key string, def int) int {
	if v, ok := r.Int(key); ok {
		return v
	}
	return def
}

// FloatOr returns the float value for key, or def when absent.
func (r Raw) FloatOr(key string, def float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Bytes returns the file content for key, or nil.
func (r Raw) Bytes(key string) []byte {
	v, _ := r[key].([]byte)
	return v
}

// Type is one pluggable workload kind.
type Type interface {
	Key() string
	Name() string

	// Validate performs cross-field domain checks only.
	Validate(input Raw) error

	// Normalize converts raw input into a canonical payload. It is total:
	// the result is always structurally valid, with empty fields where the
	// workload has no corresponding input.
	Normalize(input Raw) models.InputPayload

	// RunnerKey resolves which runner executes this submission.
	RunnerKey(input Raw) string
}

// ValidationError reports malformed or insufficient user input. It is
// always recoverable and surfaced verbatim to the submitter.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// NewValidationError builds a single-message validation error.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Registry holds the registered workload types. It is constructed once at
// startup and passed by reference to every consumer.
type Registry struct {
	types map[string]Type
	order []string
}

// NewRegistry creates an empty workload registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]Type{}}
}

// Register adds a workload type. Registering a duplicate key panics; that
// is a wiring bug, not a runtime condition.
func (r *Registry) Register(t Type) {
	if t.Key() == "" {
		panic("workload: type with empty key")
	}
	if _, dup := r.types[t.Key()]; dup {
		panic(fmt.Sprintf("workload: duplicate key %q", t.Key()))
	}
	r.types[t.Key()] = t
	r.order = append(r.order, t.Key())
}

// Get returns the workload type for key.
func (r *Registry) Get(key string) (Type, error) {
	t, ok := r.types[key]
	if !ok {
		return nil, NewValidationError("unknown workload type: %s", key)
	}
	return t, nil
}

// All returns the registered types in registration order.
func (r *Registry) All() []Type {
	out := make([]Type, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.types[key])
	}
	return out
}

// DefaultRegistry returns a registry with every built-in workload type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Boltz2{})
	r.Register(&Chai1{})
	r.Register(&RFdiffusion{})
	r.Register(&RFdiffusion3{})
	r.Register(&LigandMPNN{})
	r.Register(&BindCraft{})
	r.Register(&BoltzGen{})
	r.Register(&Passthrough{})
	return r
}
