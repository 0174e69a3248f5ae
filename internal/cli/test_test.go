package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func TestTest_HarnessScenarios(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})

	out, err := execute(t, cmd, harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "filter_by_name")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTest_Filter(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "json"})

	out, err := execute(t, cmd, harnessScenarios, "--filter", "filter_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "filter_by_name", resp.Data.Scenarios[0].Name)
}

// writeScenario writes a scenario without a mapping into a fresh directory.
func writeScenario(t *testing.T, sql string) string {
	t.Helper()
	dir := t.TempDir()
	doc := `name: by_name
description: filter by name
query:
  from: {name: c, table: Cook}
  clauses:
    - where: {op: "==", left: {path: c.Name}, right: {const: Huber}}
  select: {path: c.FirstName}
assertions:
  - type: sql_equals
    sql: "` + sql + `"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "by_name.yaml"), []byte(doc), 0644))
	return dir
}

func TestTest_UpdateAndCompareGolden(t *testing.T) {
	dir := writeScenario(t, "SELECT [t0].[FirstName] AS [value] FROM [CookTable] AS [t0] WHERE ([t0].[Name] = @1)")
	opts := &RootOptions{Format: "text", Mapping: kitchenMapping}

	_, err := execute(t, NewTestCommand(opts), dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "by_name.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"parameters":["Huber"]`)

	_, err = execute(t, NewTestCommand(opts), dir)
	require.NoError(t, err)

	// A stale golden file fails the scenario.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "by_name.golden"), []byte("{}"), 0644))
	out, err := execute(t, NewTestCommand(opts), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTest_FailingAssertion(t *testing.T) {
	dir := writeScenario(t, "SELECT 1")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text", Mapping: kitchenMapping}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Assertion failed: sql_equals")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_NoMapping(t *testing.T) {
	dir := writeScenario(t, "SELECT 1")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "no mapping")
}

func TestTest_Errors(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
