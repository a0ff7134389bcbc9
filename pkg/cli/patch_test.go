package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatchCommand(t *testing.T) {
	cmd := newPatchCommand()

	assert.Equal(t, "patch", cmd.Name)
	assert.NotNil(t, cmd.Run)
	require.NotNil(t, cmd.Flags)

	for _, name := range []string{"patchers", "modules", "debug-dump", "strict", "no-cache", "log-level", "log-format"} {
		assert.NotNil(t, cmd.Flags.Lookup(name), "expected flag %s", name)
	}
	assert.Equal(t, "./patchers", cmd.Flags.Lookup("patchers").DefValue)
	assert.Equal(t, "./modules", cmd.Flags.Lookup("modules").DefValue)
}

func TestRunPatch_MissingPluginDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")

	err := runPatch([]string{"-patchers", missing, "-modules", t.TempDir(), "-log-level", "error"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan")
}

func TestRunPatch_EmptyPluginDir(t *testing.T) {
	output, err := captureStdout(t, func() error {
		return runPatch([]string{"-patchers", t.TempDir(), "-modules", t.TempDir(), "-log-level", "error"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "nothing to do")
}
