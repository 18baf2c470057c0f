package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and returns captured stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeTestConfig creates a config file and content dir under a temp root.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	contentDir := filepath.Join(root, "knowledge")
	require.NoError(t, os.MkdirAll(contentDir, 0o755))

	cfgPath := filepath.Join(root, "supportkb.yaml")
	cfg := fmt.Sprintf(`version: 1
paths:
  content_dir: %s
  data_dir: %s
embeddings:
  provider: static
`, contentDir, filepath.Join(root, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func contentDirOf(t *testing.T, cfgPath string) string {
	t.Helper()
	return filepath.Join(filepath.Dir(cfgPath), "knowledge")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "supportkb")
}

func TestBuildAndSearchCommands(t *testing.T) {
	cfgPath := writeTestConfig(t)
	docPath := filepath.Join(contentDirOf(t, cfgPath), "billing", "refunds.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(docPath), 0o755))
	require.NoError(t, os.WriteFile(docPath,
		[]byte("# Refunds\n\nRefunds take five business days."), 0o644))

	out, err := run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Build succeeded")
	assert.Contains(t, out, "documents: 1")

	out, err = run(t, "--config", cfgPath, "search", "refund")
	require.NoError(t, err)
	assert.Contains(t, out, "Refunds take five business days.")

	out, err = run(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "documents:  1")
}

func TestSearchBeforeBuild(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, "--config", cfgPath, "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "no index built yet")
}

func TestClearRequiresYes(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := run(t, "--config", cfgPath, "clear")
	require.Error(t, err)

	out, err := run(t, "--config", cfgPath, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
}

func TestSearchJSONOutput(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, "--config", cfgPath, "search", "--json", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, `"reason": "no_index"`)
}
