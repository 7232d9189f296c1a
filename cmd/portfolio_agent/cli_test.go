package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// getBinaryPath returns the path to the portfolio_agent binary for testing
func getBinaryPath(t *testing.T) string {
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", "portfolio_agent")
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/portfolio_agent ./cmd/portfolio_agent'", binaryPath)
	}
	return binaryPath
}

func TestDataCommands_RoundTrip(t *testing.T) {
	binaryPath := getBinaryPath(t)
	dataDir := t.TempDir()
	snapshot := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{"personal": {"name": "Jane Q Doe"}}`), 0o644))

	run := func(args ...string) (string, error) {
		cmd := exec.Command(binaryPath, append([]string{"--backend", "file", "--data-dir", dataDir}, args...)...)
		cmd.Env = append(os.Environ(), "PORTFOLIO_MANIFEST_URL=")
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	out, err := run("data", "import", snapshot)
	require.NoError(t, err, out)

	out, err = run("data", "show", "personal")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Jane Q Doe")

	out, err = run("data", "reset")
	assert.Error(t, err)
	assert.Contains(t, out, "--yes")

	out, err = run("data", "reset", "--yes")
	require.NoError(t, err, out)

	out, err = run("data", "show", "personal")
	require.NoError(t, err, out)
	assert.Contains(t, out, portfolio.Default().DisplayName())
}

func TestDataValidateCommand(t *testing.T) {
	binaryPath := getBinaryPath(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, portfolio.DefaultJSON(), 0o644))
	out, err := exec.Command(binaryPath, "data", "validate", good).CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "valid portfolio")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"projects": [{"title": "no id"}]}`), 0o644))
	_, err = exec.Command(binaryPath, "data", "validate", bad).CombinedOutput()
	assert.Error(t, err)
}

func TestServeCommand_RequiresLogin(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "serve", "--backend", "memory", "--no-pdf")
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	out, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(out), "--open")
}

func TestExportPDFCommand_MissingFromFile(t *testing.T) {
	binaryPath := getBinaryPath(t)

	out, err := exec.Command(binaryPath, "export-pdf", "--backend", "memory",
		"--from", filepath.Join(t.TempDir(), "missing.json")).CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(out), "missing.json")
}

func TestExportPDFCommand_FromAndPageConflict(t *testing.T) {
	binaryPath := getBinaryPath(t)

	out, err := exec.Command(binaryPath, "export-pdf", "--backend", "memory",
		"--from", "a.json", "--page", "b.html").CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(out), "cannot be combined")
}
