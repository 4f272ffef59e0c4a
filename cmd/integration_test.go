package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

const productsCSV = "id,name,price,quantity\n1,Item 1,10.50,100\n2,Item 2,15.75,200\n3,Item 3,20.00,300\n"

// resetFlags restores every flag in the tree to its default so that state
// from a previous invocation does not leak into the next one.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns what it wrote through
// cmd.OutOrStdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func isolatedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"TABSCHEMA_MAX_ROWS", "TABSCHEMA_WORKSPACES_DIR", "TABSCHEMA_POSTGRES_DSN"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCLI_Init_Add_FileCommands(t *testing.T) {
	home := isolatedHome(t)
	csvPath := writeInput(t, home, "products.csv", productsCSV)

	runCmd(t, "init", "shop", "-d", "integration test")
	runCmd(t, "add", "-w", "shop", csvPath)

	out := runCmd(t, "file", "meta", "get", "products.csv", workspace.MetaColumnTypes, "-w", "shop")
	assert.Equal(t, "id:integer,name:text,price:float,quantity:integer\n", out)
	out = runCmd(t, "file", "meta", "get", "products.csv", workspace.MetaInsertTemplate, "-w", "shop")
	assert.Equal(t, "INSERT INTO my_table (id, name, price, quantity) VALUES ($1, $2, $3, $4);\n", out)

	runCmd(t, "file", "meta", "set", "products.csv", "owner", "ops", "-w", "shop")
	assert.Equal(t, "ops\n", runCmd(t, "file", "meta", "get", "products.csv", "owner", "-w", "shop"))

	assert.Equal(t, productsCSV, runCmd(t, "file", "cat", "products.csv", "-w", "shop"))

	updated := writeInput(t, home, "products_v2.csv", "id,name,price,quantity,active\n1,Item 1,10.50,100,yes\n")
	runCmd(t, "file", "update", "products.csv", updated, "-w", "shop")
	assert.Equal(t, "5\n", runCmd(t, "file", "meta", "get", "products.csv", workspace.MetaColumnCount, "-w", "shop"))

	runCmd(t, "file", "rm", "products.csv", "-w", "shop")
	_, err := execCmd(t, "file", "show", "products.csv", "-w", "shop")
	assert.Error(t, err)
}

func TestCLI_InitRefusesExistingWorkspace(t *testing.T) {
	isolatedHome(t)
	runCmd(t, "init", "dup")
	_, err := execCmd(t, "init", "dup")
	assert.ErrorContains(t, err, "already exists")
}

func TestCLI_AddRejectsMalformedCSV(t *testing.T) {
	home := isolatedHome(t)
	bad := writeInput(t, home, "bad.csv", "a,b\n1,2,3\n")
	runCmd(t, "init", "w")
	_, err := execCmd(t, "add", "-w", "w", bad)
	assert.ErrorContains(t, err, "has no matching header")

	ws, err := workspace.Load(filepath.Join(home, ".tabschema", "workspaces", "w"))
	require.NoError(t, err)
	assert.Empty(t, ws.Store().List())
}

func TestCLI_AnalyzeFormats(t *testing.T) {
	home := isolatedHome(t)
	csvPath := writeInput(t, home, "products.csv", productsCSV)

	jsonOut := filepath.Join(home, "out.json")
	runCmd(t, "analyze", csvPath, "--format", "json", "-o", jsonOut, "--table", "products")
	b, err := os.ReadFile(jsonOut)
	require.NoError(t, err)
	var decoded struct {
		RowCount int `json:"row_count"`
		Columns  map[string]struct {
			DataType string `json:"data_type"`
		} `json:"columns"`
		SQL struct {
			CreateTable string `json:"create_table"`
		} `json:"sql_statements"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 3, decoded.RowCount)
	assert.Equal(t, "float", decoded.Columns["price"].DataType)
	assert.Contains(t, decoded.SQL.CreateTable, "CREATE TABLE products (")

	sqlOut := filepath.Join(home, "out.sql")
	runCmd(t, "analyze", csvPath, "--format", "sql", "-o", sqlOut)
	b, err = os.ReadFile(sqlOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "CREATE TABLE my_table ("))
	assert.Contains(t, string(b), "INSERT INTO my_table")

	mdOut := filepath.Join(home, "out.md")
	runCmd(t, "analyze", csvPath, "-o", mdOut, "--sample-rows", "0")
	b, err = os.ReadFile(mdOut)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[SCHEMA]")
	assert.NotContains(t, string(b), "[HEAD AND SAMPLE ROWS]")

	_, err = execCmd(t, "analyze", csvPath, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported --format")
	_, err = execCmd(t, "analyze", csvPath, "--delimiter", "#")
	assert.ErrorContains(t, err, "unsupported --delimiter")
}

func TestCLI_ConfigSetPersistsAndApplies(t *testing.T) {
	home := isolatedHome(t)
	runCmd(t, "config", "set", "table_name", "inventory")
	_, err := os.Stat(filepath.Join(home, ".tabschema", "config.yaml"))
	require.NoError(t, err)

	csvPath := writeInput(t, home, "products.csv", productsCSV)
	sqlOut := filepath.Join(home, "out.sql")
	runCmd(t, "analyze", csvPath, "--format", "sql", "-o", sqlOut)
	b, err := os.ReadFile(sqlOut)
	require.NoError(t, err)
	assert.Contains(t, string(b), "CREATE TABLE inventory (")

	_, err = execCmd(t, "config", "set", "max_rows", "zero")
	assert.Error(t, err)
	_, err = execCmd(t, "config", "set", "unknown_key", "1")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestCLI_ApplyRequiresDSN(t *testing.T) {
	home := isolatedHome(t)
	csvPath := writeInput(t, home, "products.csv", productsCSV)
	runCmd(t, "apply", csvPath, "--dry-run")
	_, err := execCmd(t, "apply", csvPath)
	assert.ErrorContains(t, err, "no database")
}

func TestCLI_ApplyDryRunQuotesTableName(t *testing.T) {
	home := isolatedHome(t)
	csvPath := writeInput(t, home, "ledger.csv", "id,total\n1,3000000000\n2,5\n")
	out := runCmd(t, "apply", csvPath, "--dry-run", "--table", "My Table")
	assert.Contains(t, out, "CREATE TABLE \"My Table\" (\n")
	assert.Contains(t, out, "    total BIGINT NOT NULL\n")
	assert.Contains(t, out, "INSERT INTO \"My Table\" (id, total) VALUES ($1, $2);\n")
	assert.Contains(t, out, "-- 2 rows would be inserted\n")
}

func TestDrainRowsMatchesAnalysis(t *testing.T) {
	opt := analysisOptions()
	opt.MaxRows = 2
	rows, err := drainRows(analysis.New(opt, nil), "products.csv", []byte(productsCSV))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "Item 1", "10.50", "100"}, {"2", "Item 2", "15.75", "200"}}, rows)
}
