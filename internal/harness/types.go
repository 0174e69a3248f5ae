package harness

import (
	"fmt"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlgen"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Command is the compiled command, nil when compilation failed.
	Command *sqlgen.Command `json:"-"`

	// CompileError is the compilation failure, nil on success.
	CompileError error `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot is the golden form of a compiled command.
type Snapshot struct {
	ScenarioName string
	Text         string
	Parameters   []any
	Projection   string
	Error        string
}

// NewSnapshot captures r under name.
func NewSnapshot(name string, r *Result) *Snapshot {
	s := &Snapshot{ScenarioName: name}
	if r.CompileError != nil {
		s.Error = string(ir.CodeOf(r.CompileError))
		if s.Error == "" {
			s.Error = r.CompileError.Error()
		}
		return s
	}
	s.Text = r.Command.Text
	s.Parameters = r.Command.Args()
	s.Projection = fmt.Sprint(r.Command.Projection)
	return s
}

// Marshal renders s as canonical JSON, the golden file form.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Parameter values without a canonical form (uuid.UUID,
// time.Time) are rendered by MarshalCanonical as strings.
func (s *Snapshot) toCanonicalMap() map[string]any {
	out := map[string]any{"scenario_name": s.ScenarioName}
	if s.Error != "" {
		out["error"] = s.Error
		return out
	}
	params := make([]any, len(s.Parameters))
	copy(params, s.Parameters)
	out["text"] = s.Text
	out["parameters"] = params
	out["projection"] = s.Projection
	return out
}
