package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, EnsureDir(nested))
	require.NoError(t, SafeWriteFile(filepath.Join(root, WorkspaceFileName), []byte("{}")))

	got, err := FindWorkspaceRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	file := filepath.Join(nested, "data.csv")
	require.NoError(t, os.WriteFile(file, []byte("a\n"), 0o644))
	got, err = FindWorkspaceRoot(file)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindWorkspaceRoot_Missing(t *testing.T) {
	_, err := FindWorkspaceRoot(t.TempDir())
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestSafeWriteFileLeavesNoTemp(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.json")
	b, err := PrettyJSON(map[string]int{"rows": 3})
	require.NoError(t, err)
	require.NoError(t, SafeWriteFile(p, b))

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"rows\": 3\n}", string(got))
	_, err = os.Stat(p + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
