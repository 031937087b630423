package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readScenario(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessScenarios, name))
	require.NoError(t, err)
	return string(data)
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = execute(t, NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Data.Total)
}

func TestTestCommandPassingScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ boot_and_navigate")
	assert.Contains(t, out, "✓ counter_restart")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(jsonOpts()), harnessScenarios, "--filter", "letter_*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "letter_keyboard", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "none", resp.Data.Scenarios[0].Golden)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "early_next.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ early_next")
	assert.Contains(t, out, "expected ok=true, got false")
	assert.Contains(t, out, "0 passed, 1 failed")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "early_next.yaml", failingScenario)
	writeFile(t, dir, "broken.yaml", "name: [")

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trace_shape.yaml", readScenario(t, "trace_shape.yaml"))
	golden := filepath.Join(dir, "golden", "trace_shape.golden")

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ trace_shape (golden updated)")
	require.FileExists(t, golden)

	out, err = execute(t, NewTestCommand(jsonOpts()), dir)
	require.NoError(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"trace_shape"}`), 0o644))
	out, err = execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, filepath.Join("nested", "letter_one.yaml"), "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "letter_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "nested", "letter_one.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"scenarios/boot.yaml", filepath.Join("scenarios", "golden", "boot.golden")},
		{"boot.yml", filepath.Join("golden", "boot.golden")},
		{"/a/b/letter_keyboard.yaml", filepath.Join("/a/b", "golden", "letter_keyboard.golden")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, goldenFilePath(tt.in), tt.in)
	}
}
