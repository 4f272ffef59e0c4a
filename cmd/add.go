package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/filestore"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

var (
	addWorkspace string
	addKind      string
	addNoAnalyze bool
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add a file to a workspace; tabular files are analyzed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind filestore.Kind
		if addKind != "" {
			k, err := filestore.ParseKind(addKind)
			if err != nil {
				return err
			}
			kind = k
		}
		ws, err := loadWorkspace(addWorkspace)
		if err != nil {
			return err
		}
		var an *analysis.Analyzer
		if !addNoAnalyze {
			an = analysis.New(analysisOptions(), log)
		}
		rec, err := ws.AddFile(cmd.Context(), args[0], kind, an)
		if err != nil {
			return err
		}
		if err := ws.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Added %s (%s, %d bytes) to workspace '%s' as %s\n", rec.Name, rec.Kind, rec.Size, ws.Name, rec.ID)
		if types, ok := rec.Metadata[workspace.MetaColumnTypes]; ok {
			fmt.Printf("  columns: %s\n", types)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addWorkspace, "workspace", "w", "", "workspace name (default: enclosing workspace)")
	addCmd.Flags().StringVar(&addKind, "kind", "", "file kind: image|video|gif|csv|other (detected from the name if omitted)")
	addCmd.Flags().BoolVar(&addNoAnalyze, "no-analyze", false, "store the file without analyzing it")
}
