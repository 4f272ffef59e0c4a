package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabschema-cli/internal/utils"
	"github.com/KaramelBytes/tabschema-cli/internal/workspace"
)

var (
	initDescription string
)

var initCmd = &cobra.Command{
	Use:   "init <workspace-name>",
	Short: "Initialize a new workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("invalid workspace name %q", name)
		}
		root, err := defaultWorkspacesDir()
		if err != nil {
			return err
		}
		wsDir := filepath.Join(root, name)
		// Refuse to overwrite an existing workspace.
		if info, err := os.Stat(wsDir); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(wsDir, utils.WorkspaceFileName)); err == nil {
				return fmt.Errorf("workspace already exists at %s", wsDir)
			}
			entries, err := os.ReadDir(wsDir)
			if err != nil {
				return fmt.Errorf("inspect workspace directory: %w", err)
			}
			if len(entries) > 0 {
				return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize workspace", wsDir)
			}
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat workspace directory: %w", err)
		}
		ws := workspace.New(name, initDescription, wsDir)
		ws.SetLogger(log)
		if err := ws.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Workspace initialized: %s\n", wsDir)
		return nil
	},
}

func defaultWorkspacesDir() (string, error) {
	var dir string
	if cfg != nil && cfg.WorkspacesDir != "" {
		dir = cfg.WorkspacesDir
		if strings.HasPrefix(dir, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home dir: %w", err)
			}
			dir = strings.TrimPrefix(dir, "~")
			dir = strings.TrimPrefix(dir, "/")
			dir = filepath.Join(home, dir)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".tabschema", "workspaces")
	}
	dir = filepath.Clean(dir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// resolveWorkspaceDir maps a workspace name to its directory. An empty name
// selects the workspace enclosing the working directory.
func resolveWorkspaceDir(name string) (string, error) {
	if name == "" {
		dir, err := utils.FindWorkspaceRoot("")
		if errors.Is(err, utils.ErrNoWorkspace) {
			return "", errors.New("--workspace is required outside a workspace directory")
		}
		return dir, err
	}
	root, err := defaultWorkspacesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

func loadWorkspace(name string) (*workspace.Workspace, error) {
	dir, err := resolveWorkspaceDir(name)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Load(dir)
	if err != nil {
		return nil, err
	}
	ws.SetLogger(log)
	return ws, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initDescription, "desc", "d", "", "workspace description")
}
