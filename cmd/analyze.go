package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/filestore"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

var (
	anaWorkspace  string
	anaOutputPath string
	anaFormat     string
	anaTable      string
	anaDelimiter  string
	anaSampleRows int
	anaMaxRows    int
	anaWorkers    int
	anaSheetName  string
	anaSheetIndex int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Infer the schema of a CSV/TSV/XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := commandOptions(cmd, anaTable, anaDelimiter, anaSampleRows, anaMaxRows, anaWorkers, anaSheetName, anaSheetIndex)
		if err != nil {
			return err
		}
		an := analysis.New(opt, log)
		res, err := an.AnalyzeFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := render(res, anaFormat)
		if err != nil {
			return err
		}

		written := false
		if anaOutputPath != "" {
			if err := os.WriteFile(anaOutputPath, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
			written = true
		}
		if anaWorkspace != "" {
			ws, err := loadWorkspace(anaWorkspace)
			if err != nil {
				return err
			}
			rec, err := attachFile(cmd.Context(), ws, args[0], an)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Added %s to workspace '%s' as %s\n", rec.Name, ws.Name, rec.ID)
			written = true
		}
		if !written {
			fmt.Println(strings.TrimRight(string(out), "\n"))
		}
		return nil
	},
}

// commandOptions layers per-command flags over the configured options. Only
// flags the user changed take effect.
func commandOptions(cmd *cobra.Command, table, delim string, sampleRows, maxRows, workers int, sheet string, sheetIndex int) (analysis.Options, error) {
	opt := analysisOptions()
	f := cmd.Flags()
	if f.Changed("table") {
		opt.TableName = table
	}
	if f.Changed("sample-rows") {
		opt.SampleRows = sampleRows
	}
	if f.Changed("max-rows") {
		if maxRows < 1 {
			return opt, fmt.Errorf("--max-rows must be >= 1")
		}
		opt.MaxRows = maxRows
	}
	if f.Changed("workers") {
		opt.Workers = workers
	}
	d, err := parseDelimiter(delim)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	opt.Sheet = sheet
	opt.SheetIndex = sheetIndex
	return opt, nil
}

// render encodes res in one of markdown, json, yaml or sql.
func render(res *analysis.Result, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return []byte(res.Markdown()), nil
	case "json":
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(b, '\n'), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return b, nil
	case "sql":
		if res.SQL == nil {
			return nil, nil
		}
		return []byte(res.SQL.CreateTable + "\n\n" + res.SQL.InsertTemplate + "\n"), nil
	default:
		return nil, fmt.Errorf("unsupported --format: %s (use markdown|json|yaml|sql)", format)
	}
}

// attachFile adds path to ws, annotating it with an, and saves the workspace.
func attachFile(ctx context.Context, ws *workspace.Workspace, path string, an *analysis.Analyzer) (filestore.Record, error) {
	rec, err := ws.AddFile(ctx, path, "", an)
	if err != nil {
		return filestore.Record{}, err
	}
	if err := ws.Save(); err != nil {
		return filestore.Record{}, err
	}
	return rec, nil
}

func addAnalysisFlags(c *cobra.Command, table, delim *string, sampleRows, maxRows, workers *int, sheet *string, sheetIndex *int) {
	c.Flags().StringVar(table, "table", "", "table name used in the emitted SQL (default from config)")
	c.Flags().StringVar(delim, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	c.Flags().IntVar(sampleRows, "sample-rows", 5, "number of sample rows to include")
	c.Flags().IntVar(maxRows, "max-rows", analysis.DefaultMaxRows, "maximum data rows to analyze")
	c.Flags().IntVar(workers, "workers", 1, "analyze column distributions with this many goroutines")
	c.Flags().StringVar(sheet, "sheet-name", "", "XLSX: sheet name to analyze")
	c.Flags().IntVar(sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaWorkspace, "workspace", "w", "", "workspace name to store the file and its analysis")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "markdown", "output format: markdown|json|yaml|sql")
	addAnalysisFlags(analyzeCmd, &anaTable, &anaDelimiter, &anaSampleRows, &anaMaxRows, &anaWorkers, &anaSheetName, &anaSheetIndex)
}
