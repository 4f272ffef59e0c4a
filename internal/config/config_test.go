package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, c.MaxRows)
	assert.Equal(t, 5, c.SampleRows)
	assert.Equal(t, "my_table", c.TableName)
	assert.Equal(t, 0.02, c.MinCategoryRatio)
	assert.Equal(t, 8, c.SmallSetMaxCategories)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, filepath.Join(home, ".tabschema", "workspaces"), c.WorkspacesDir)
}

func TestSaveLoadAndEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("max_rows", "250"))
	require.NoError(t, c.Set("table_name", "events"))
	require.NoError(t, c.Set("confidence_threshold", "0.8"))
	require.NoError(t, Save(c, ""))

	_, err = os.Stat(filepath.Join(home, ".tabschema", "config.yaml"))
	require.NoError(t, err)

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, got.MaxRows)
	assert.Equal(t, "events", got.TableName)
	assert.Equal(t, 0.8, got.ConfidenceThreshold)

	t.Setenv("TABSCHEMA_MAX_ROWS", "42")
	got, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 42, got.MaxRows)
}

func TestExplicitConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\nlog_level: debug\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 1000, c.MaxRows)
}

func TestSetRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	cases := []struct{ key, val string }{
		{"max_rows", "abc"},
		{"max_rows", "0"},
		{"min_category_ratio", "1.5"},
		{"log_level", "loud"},
		{"nope", "1"},
	}
	for _, tc := range cases {
		fresh := *c
		assert.Error(t, fresh.Set(tc.key, tc.val), "%s=%s", tc.key, tc.val)
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 13)
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "workspaces_dir")
}
