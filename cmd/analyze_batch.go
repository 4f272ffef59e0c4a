package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

var (
	abWorkspace  string
	abFormat     string
	abTable      string
	abDelimiter  string
	abSampleRows int
	abMaxRows    int
	abWorkers    int
	abSheetName  string
	abSheetIndex int
	abJobs       int
	abQuiet      bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files with progress and optional workspace attachment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		opt, err := commandOptions(cmd, abTable, abDelimiter, abSampleRows, abMaxRows, abWorkers, abSheetName, abSheetIndex)
		if err != nil {
			return err
		}
		an := analysis.New(opt, log)

		var ws *workspace.Workspace
		if abWorkspace != "" {
			if ws, err = loadWorkspace(abWorkspace); err != nil {
				return err
			}
		}

		// Analyses run concurrently; output and attachment stay in input order.
		results := make([]*analysis.Result, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		if abJobs < 1 {
			abJobs = 1
		}
		g.SetLimit(abJobs)
		for i, path := range files {
			i, path := i, path
			g.Go(func() error {
				res, err := an.AnalyzeFile(ctx, path)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if ws != nil {
				rec, err := ws.AddFile(cmd.Context(), path, "", an)
				if err != nil {
					return err
				}
				if !abQuiet {
					fmt.Printf("✓ Added %s to workspace '%s' as %s\n", rec.Name, ws.Name, rec.ID)
				}
				continue
			}
			if abQuiet {
				continue
			}
			out, err := render(results[i], abFormat)
			if err != nil {
				return err
			}
			fmt.Println(strings.TrimRight(string(out), "\n"))
		}
		if ws != nil {
			return ws.Save()
		}
		return nil
	},
}

// expandInputs resolves glob patterns and literal paths, dropping duplicates
// and returning the files sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVarP(&abWorkspace, "workspace", "w", "", "workspace name to store the files and their analyses")
	analyzeBatchCmd.Flags().StringVarP(&abFormat, "format", "f", "markdown", "output format: markdown|json|yaml|sql")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 1, "number of files analyzed concurrently")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	addAnalysisFlags(analyzeBatchCmd, &abTable, &abDelimiter, &abSampleRows, &abMaxRows, &abWorkers, &abSheetName, &abSheetIndex)
}
