package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Text     string // Full command text for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Text != "" {
		fmt.Fprintf(&buf, "\nCommand:\n  %s\n", e.Text)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against r and returns the
// failure messages. An error assertion inverts the contract: compilation
// must fail, and no other assertion is evaluated against the missing
// command.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(r, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(r, a)
	}
	if r.CompileError != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "successful compilation",
			Actual:   r.CompileError.Error(),
		}
	}

	text := r.Command.Text
	switch a.Type {
	case AssertSQLEquals:
		if text != a.SQL {
			return &AssertionError{Type: a.Type, Expected: a.SQL, Actual: text}
		}
	case AssertSQLContains:
		if !strings.Contains(text, a.Text) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("text containing %q", a.Text), Actual: "not found", Text: text}
		}
	case AssertSQLNotContains:
		if strings.Contains(text, a.Text) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no %q", a.Text), Actual: "found", Text: text}
		}
	case AssertSQLCount:
		if n := strings.Count(text, a.Text); n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%q %d times", a.Text, a.Count),
				Actual:   fmt.Sprintf("%d times", n),
				Text:     text,
			}
		}
	case AssertParameters:
		return assertParameters(r, a)
	case AssertProjection:
		if got := fmt.Sprint(r.Command.Projection); got != a.Text {
			return &AssertionError{Type: a.Type, Expected: a.Text, Actual: got, Text: text}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertError(r *Result, a Assertion) error {
	if r.CompileError == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "compile error " + a.Code,
			Actual:   "compiled",
			Text:     r.Command.Text,
		}
	}
	if got := string(ir.CodeOf(r.CompileError)); got != a.Code {
		return &AssertionError{
			Type:     a.Type,
			Expected: "compile error " + a.Code,
			Actual:   r.CompileError.Error(),
		}
	}
	return nil
}

// assertParameters compares parameter values through their canonical JSON
// form, so that YAML integers match int64 values and strings match UUIDs.
func assertParameters(r *Result, a Assertion) error {
	want, err := canonicalList(a.Values)
	if err != nil {
		return fmt.Errorf("parameters assertion: %w", err)
	}
	got, err := canonicalList(r.Command.Args())
	if err != nil {
		return fmt.Errorf("parameters of command: %w", err)
	}
	if want != got {
		return &AssertionError{Type: a.Type, Expected: want, Actual: got, Text: r.Command.Text}
	}
	return nil
}

func canonicalList(values []any) (string, error) {
	list := make([]any, len(values))
	copy(list, values)
	b, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
