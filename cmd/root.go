package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/tabschema-cli/internal/config"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tabschema",
	Short: "tabschema: infer a typed SQL schema from CSV/TSV/XLSX data",
	Long: `tabschema reads delimited text or workbooks, infers column types, nullability and
categorical (enum) sets, and emits PostgreSQL DDL. Files can be kept in workspaces
and loaded into a database with 'apply'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_ = log.Sync()
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
	_ = log.Sync()
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabschema/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = nil
	}
	cfg = c
	level := "warn"
	if cfg != nil {
		level = cfg.LogLevel
	}
	if debug {
		level = "debug"
	}
	l, err := newLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logger: %v\n", err)
		return
	}
	log = l
}

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

// analysisOptions maps the loaded configuration onto analysis options.
func analysisOptions() analysis.Options {
	opt := analysis.DefaultOptions()
	if cfg == nil {
		return opt
	}
	opt.MaxRows = cfg.MaxRows
	opt.SampleRows = cfg.SampleRows
	opt.SampleValues = cfg.SampleValues
	opt.TableName = cfg.TableName
	opt.Workers = cfg.Workers
	opt.Distribution = analysis.DistributionConfig{
		MinTotalValues:        cfg.MinTotalValues,
		MinCategoryRatio:      cfg.MinCategoryRatio,
		MaxCategories:         cfg.MaxCategories,
		ConfidenceThreshold:   cfg.ConfidenceThreshold,
		SmallSetMaxCategories: cfg.SmallSetMaxCategories,
	}
	return opt
}

// parseDelimiter accepts a literal character or a name.
func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s (use ','|';'|'tab'|'|')", s)
	}
}
