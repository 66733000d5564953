package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRun(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// copyScenario copies a testdata scenario into dir.
func copyScenario(t *testing.T, name, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunCommandMissingArgs(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestRunCommandNonExistentPath(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"}, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandEmptyDir(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestRunCommandEmptyDirJSON(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "json"}, t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestRunCommandPassingScenario(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/scenarios/dish_on.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dish_on")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestRunCommandFailingScenario(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/scenarios/dish_fault.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	assert.Contains(t, out, "✗ dish_fault")
	assert.Contains(t, out, "  Assertion failed: has_event")
	assert.Contains(t, out, "STATUS: timed_out")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestRunCommandDirectoryJSON(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "json"}, "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	byName := make(map[string]ScenarioResult)
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "dish_on")
	assert.True(t, byName["dish_on"].Pass, "errors: %v", byName["dish_on"].Errors)
	assert.Equal(t, 2, byName["dish_on"].Events)
	require.Len(t, byName["dish_on"].Assertions, 1)
	assert.Equal(t, []int64{2}, byName["dish_on"].Assertions[0].Matched)

	require.Contains(t, byName, "dish_fault")
	assert.False(t, byName["dish_fault"].Pass)
	assert.NotEmpty(t, byName["dish_fault"].Errors)
}

func TestRunCommandFilter(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/scenarios", "--filter", "*_on")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dish_on")
	assert.NotContains(t, out, "dish_fault")
	assert.Contains(t, out, "1 total")
}

func TestRunCommandInvalidFilter(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandWithinOverride(t *testing.T) {
	// The state change arrives at 10ms: a zero-ish budget misses it.
	out, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/scenarios/dish_on.yaml", "--within", "1ns")
	require.Error(t, err)
	assert.Contains(t, out, "✗ dish_on")
}

func TestRunCommandLoadError(t *testing.T) {
	out, err := executeRun(t, &RootOptions{Format: "text"}, "testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "✗ unknown_field.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestRunCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, "dish_on.yaml", dir)
	goldenPath := filepath.Join(dir, "golden", "dish_on.golden")

	_, err := executeRun(t, &RootOptions{Format: "text"}, dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	expected, err := os.ReadFile("testdata/scenarios/golden/dish_on.golden")
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(written))

	// The regenerated file matches on the next run
	out, err := executeRun(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dish_on")
}

func TestRunCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, "dish_on.yaml", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "dish_on.golden"), []byte(`{"stale":true}`), 0644))

	out, err := executeRun(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ dish_on")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	for _, name := range []string{"a.yaml", "b.yml", "nested/c.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "nested", "c.yaml")}, files)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "dish_on.golden"),
		goldenFilePath(filepath.Join("scenarios", "dish_on.yaml")))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb\n", "  "))
}
