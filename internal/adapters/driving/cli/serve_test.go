package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeReturnsServerErrorAfterCleanup(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("NEWSVAULT_DATA_DIR", dataDir)
	t.Setenv("NEWSVAULT_API_LISTEN", "127.0.0.1:-1")

	prev := configPath
	configPath = filepath.Join(t.TempDir(), "config.toml")
	defer func() { configPath = prev }()

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	// A listen failure takes the error path; serve must still stop the
	// refresher and shut the server down, then surface the error.
	err := runServe(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")

	// The replica is torn down on the way out.
	files, err := filepath.Glob(filepath.Join(dataDir, "replica-*.db"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
