package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

func TestAnalyzeBatch_AttachesEveryMatch(t *testing.T) {
	home := isolatedHome(t)

	// Two CSV files with the same basename in different directories
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	for _, d := range []string{"d1", "d2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(home, d), 0o755))
		writeInput(t, filepath.Join(home, d), "metrics.csv", csv)
	}

	runCmd(t, "init", "batchp", "-d", "batch workspace")
	runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), "-w", "batchp", "--jobs", "2", "--quiet")

	ws, err := workspace.Load(filepath.Join(home, ".tabschema", "workspaces", "batchp"))
	require.NoError(t, err)
	files := ws.Store().List()
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, "metrics.csv", f.Name)
		assert.Equal(t, "col1:text,col2:integer", f.Metadata[workspace.MetaColumnTypes])
		assert.Equal(t, "3", f.Metadata[workspace.MetaRowCount])
	}

	// Names are ambiguous now; references must use ids.
	_, err = execCmd(t, "file", "show", "metrics.csv", "-w", "batchp")
	assert.ErrorContains(t, err, "matches 2 files")
}

func TestAnalyzeBatch_StopsOnBadInput(t *testing.T) {
	home := isolatedHome(t)
	good := writeInput(t, home, "a.csv", "x\n1\n")
	bad := writeInput(t, home, "b.csv", "x\n1,2\n")
	_, err := execCmd(t, "analyze-batch", good, bad, "--quiet")
	assert.ErrorContains(t, err, "b.csv")

	_, err = execCmd(t, "analyze-batch", filepath.Join(home, "nothing*.csv"))
	assert.ErrorContains(t, err, "no input files matched")
}

func TestExpandInputsDedupesAndSorts(t *testing.T) {
	dir := t.TempDir()
	b := writeInput(t, dir, "b.csv", "x\n")
	a := writeInput(t, dir, "a.csv", "x\n")
	files, err := expandInputs([]string{b, filepath.Join(dir, "*.csv"), a})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}
