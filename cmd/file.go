package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

var (
	fileWorkspace string
	fileShowSQL   bool
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Inspect and manage files stored in a workspace",
}

// withFile loads the workspace and resolves ref (id, id prefix or name).
func withFile(ref string, fn func(ws *workspace.Workspace, id string) error) error {
	ws, err := loadWorkspace(fileWorkspace)
	if err != nil {
		return err
	}
	rec, err := ws.Store().Resolve(ref)
	if err != nil {
		return err
	}
	return fn(ws, rec.ID)
}

var fileShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show a file's record and metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			rec, err := ws.Store().Read(id)
			if err != nil {
				return err
			}
			fmt.Printf("id: %s\n", rec.ID)
			fmt.Printf("name: %s\n", rec.Name)
			fmt.Printf("kind: %s\n", rec.Kind)
			fmt.Printf("size: %d\n", rec.Size)
			fmt.Printf("checksum: %s\n", rec.Checksum)
			fmt.Printf("created_at: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("updated_at: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
			keys := make([]string, 0, len(rec.Metadata))
			for k := range rec.Metadata {
				// bulky values are printed on request
				if k == workspace.MetaAnalysis || k == workspace.MetaCreateTable {
					continue
				}
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("meta.%s: %s\n", k, rec.Metadata[k])
			}
			if fileShowSQL {
				if ddl, ok := rec.Metadata[workspace.MetaCreateTable]; ok {
					fmt.Println()
					fmt.Println(ddl)
				}
			}
			return nil
		})
	},
}

var fileCatCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Write a file's content to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			b, err := ws.Store().Content(id)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		})
	},
}

var fileRmCmd = &cobra.Command{
	Use:   "rm <file>",
	Short: "Remove a file from a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			if err := ws.Store().Delete(id); err != nil {
				return err
			}
			if err := ws.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s from workspace '%s'\n", id, ws.Name)
			return nil
		})
	},
}

var fileUpdateCmd = &cobra.Command{
	Use:   "update <file> <path>",
	Short: "Replace a file's content; tabular files are re-analyzed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[1]); err != nil {
			return fmt.Errorf("file not found: %s", args[1])
		}
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			rec, err := ws.UpdateFile(cmd.Context(), id, args[1], analysis.New(analysisOptions(), log))
			if err != nil {
				return err
			}
			if err := ws.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Updated %s (%d bytes)\n", rec.Name, rec.Size)
			return nil
		})
	},
}

var fileMetaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Read or write file metadata",
}

var fileMetaGetCmd = &cobra.Command{
	Use:   "get <file> <key>",
	Short: "Print one metadata value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			v, err := ws.Store().GetMetadata(id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var fileMetaSetCmd = &cobra.Command{
	Use:   "set <file> <key> <value>",
	Short: "Set one metadata value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], func(ws *workspace.Workspace, id string) error {
			if err := ws.Store().SetMetadata(id, args[1], args[2]); err != nil {
				return err
			}
			if err := ws.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Set %s on %s\n", args[1], id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(fileCmd)
	fileCmd.PersistentFlags().StringVarP(&fileWorkspace, "workspace", "w", "", "workspace name (default: enclosing workspace)")
	fileShowCmd.Flags().BoolVar(&fileShowSQL, "sql", false, "print the stored CREATE statements")
	fileCmd.AddCommand(fileShowCmd, fileCatCmd, fileRmCmd, fileUpdateCmd, fileMetaCmd)
	fileMetaCmd.AddCommand(fileMetaGetCmd, fileMetaSetCmd)
}
