package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabschema-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set tabschema configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("max_rows: %d\n", cfg.MaxRows)
		fmt.Printf("sample_rows: %d\n", cfg.SampleRows)
		fmt.Printf("sample_values: %d\n", cfg.SampleValues)
		fmt.Printf("table_name: %s\n", cfg.TableName)
		fmt.Printf("workers: %d\n", cfg.Workers)
		fmt.Printf("min_total_values: %d\n", cfg.MinTotalValues)
		fmt.Printf("min_category_ratio: %.3f\n", cfg.MinCategoryRatio)
		fmt.Printf("max_categories: %d\n", cfg.MaxCategories)
		fmt.Printf("confidence_threshold: %.3f\n", cfg.ConfidenceThreshold)
		fmt.Printf("small_set_max_categories: %d\n", cfg.SmallSetMaxCategories)
		fmt.Printf("workspaces_dir: %s\n", cfg.WorkspacesDir)
		fmt.Printf("postgres_dsn: %s\n", mask(cfg.PostgresDSN))
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next := *cfg
		if err := next.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
