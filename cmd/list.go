package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabschema-cli/internal/utils"
)

var (
	listWorkspaces bool
	listFiles      bool
	listWsName     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces or the files of a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listWorkspaces == listFiles { // either both true or both false
			return fmt.Errorf("specify exactly one of --workspaces or --files")
		}
		if listWorkspaces {
			return listAllWorkspaces()
		}
		ws, err := loadWorkspace(listWsName)
		if err != nil {
			return err
		}
		files := ws.Store().List()
		if len(files) == 0 {
			fmt.Println("(no files)")
			return nil
		}
		for _, f := range files {
			fmt.Printf("- %s: %s (%s, %d bytes)\n", f.ID, f.Name, f.Kind, f.Size)
		}
		return nil
	},
}

func listAllWorkspaces() error {
	root, err := defaultWorkspacesDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), utils.WorkspaceFileName)); err == nil {
			fmt.Printf("- %s\n", e.Name())
			found = true
		}
	}
	if !found {
		fmt.Println("(no workspaces)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listWorkspaces, "workspaces", false, "list workspaces")
	listCmd.Flags().BoolVar(&listFiles, "files", false, "list files in a workspace")
	listCmd.Flags().StringVarP(&listWsName, "workspace", "w", "", "workspace name for --files (default: enclosing workspace)")
}
