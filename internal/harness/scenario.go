package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/ir"
)

// Scenario defines a compiler conformance scenario: one query, the mapping
// it compiles against, and assertions about the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mapping is the path of the mapping file or CUE directory.
	// Relative paths are resolved against the scenario file location.
	// May be empty when the scenario runs on a Harness built from a schema.
	Mapping string `yaml:"mapping,omitempty"`

	// Query is the query in querymodel YAML form.
	Query yaml.Node `yaml:"query"`

	// Assertions validate the compiled command.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a compiled command.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sql_equals": command text equals SQL
	// - "sql_contains": command text contains Text
	// - "sql_not_contains": command text does not contain Text
	// - "sql_count": Text occurs exactly Count times
	// - "parameters": parameter values equal Values
	// - "projection": projection text form equals Text
	// - "error": compilation fails with Code
	Type string `yaml:"type"`

	// SQL is the expected command text (used by sql_equals).
	SQL string `yaml:"sql,omitempty"`

	// Text is a fragment of the command text (used by sql_contains,
	// sql_not_contains, sql_count) or the projection text (used by projection).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of occurrences (used by sql_count).
	Count int `yaml:"count,omitempty"`

	// Values are the expected parameter values in @1..@n order (used by
	// parameters).
	Values []any `yaml:"values,omitempty"`

	// Code is the expected error code (used by error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLEquals      = "sql_equals"
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertSQLCount       = "sql_count"
	AssertParameters     = "parameters"
	AssertProjection     = "projection"
	AssertError          = "error"
)

var errorCodes = map[string]bool{
	string(ir.ErrCodeUnsupportedOperator):   true,
	string(ir.ErrCodeUnsupportedMethodCall): true,
	string(ir.ErrCodeUnsupportedExpression): true,
	string(ir.ErrCodeMappingFailure):        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative mapping path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Mapping != "" && !filepath.IsAbs(s.Mapping) {
		s.Mapping = filepath.Join(filepath.Dir(path), s.Mapping)
	}
	return s, nil
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Query.Kind != yaml.MappingNode {
		return fmt.Errorf("query is required and must be a mapping")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSQLEquals:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for sql_equals", index)
		}
	case AssertSQLContains, AssertSQLNotContains, AssertProjection:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertSQLCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for sql_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for sql_count", index)
		}
	case AssertParameters:
		// An empty list asserts that there are no parameters.
	case AssertError:
		if !errorCodes[a.Code] {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
