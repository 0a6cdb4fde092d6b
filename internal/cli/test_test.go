package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func copyTestdata(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		writeFile(t, filepath.Join(dir, name), string(data))
	}
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 0, data["total"])
}

func TestTestCommandPassingScenarios(t *testing.T) {
	dir := t.TempDir()
	copyTestdata(t, dir, "counter.yaml", "scenario.yaml")

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter (3 cycles)")
	assert.Contains(t, out, "✓ scenario (1 cycles)")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	copyTestdata(t, dir, "scenario.yaml", "wrong.yaml")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, `cycle 1: root "sum"`)
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	copyTestdata(t, dir, "counter.yaml", "scenario.yaml", "wrong.yaml")

	out, err := execute(t, "test", dir, "--filter", "count*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandExplicitFiles(t *testing.T) {
	out, err := execute(t, "--format", "json", "test",
		filepath.Join("testdata", "counter.yaml"),
		filepath.Join("testdata", "wrong.yaml"),
	)
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	details := resp.Error.Details.(map[string]any)
	assert.EqualValues(t, 1, details["passed"])
	assert.EqualValues(t, 1, details["failed"])
}

func TestTestCommandNotAScenario(t *testing.T) {
	// feedback.yaml has roots but no cycles list.
	out, err := execute(t, "test", filepath.Join("testdata", "feedback.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "✗ feedback.yaml")
	assert.Contains(t, out, "load: invalid scenario")
}
