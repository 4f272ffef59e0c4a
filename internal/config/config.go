package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName    = ".tabschema"
	envPrefix  = "TABSCHEMA"
	configName = "config"
)

// Global configuration structure.
type Global struct {
	// Analysis bounds
	MaxRows      int    `mapstructure:"max_rows" yaml:"max_rows"`
	SampleRows   int    `mapstructure:"sample_rows" yaml:"sample_rows"`
	SampleValues int    `mapstructure:"sample_values" yaml:"sample_values"`
	TableName    string `mapstructure:"table_name" yaml:"table_name"`
	Workers      int    `mapstructure:"workers" yaml:"workers"`

	// Categorical detection thresholds
	MinTotalValues        int     `mapstructure:"min_total_values" yaml:"min_total_values"`
	MinCategoryRatio      float64 `mapstructure:"min_category_ratio" yaml:"min_category_ratio"`
	MaxCategories         int     `mapstructure:"max_categories" yaml:"max_categories"`
	ConfidenceThreshold   float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	SmallSetMaxCategories int     `mapstructure:"small_set_max_categories" yaml:"small_set_max_categories"`

	WorkspacesDir string `mapstructure:"workspaces_dir" yaml:"workspaces_dir"`
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
}

var defaults = map[string]any{
	"max_rows":                 1000,
	"sample_rows":              5,
	"sample_values":            5,
	"table_name":               "my_table",
	"workers":                  1,
	"min_total_values":         10,
	"min_category_ratio":       0.02,
	"max_categories":           20,
	"confidence_threshold":     0.7,
	"small_set_max_categories": 8,
	"postgres_dsn":             "",
	"log_level":                "warn",
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults)+1)
	for k := range defaults {
		keys = append(keys, k)
	}
	keys = append(keys, "workspaces_dir")
	sort.Strings(keys)
	return keys
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabschema/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, configName+".yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Registered so TABSCHEMA_WORKSPACES_DIR is seen by Unmarshal.
	v.SetDefault("workspaces_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			if _, statErr := os.Stat(cfgFile); statErr == nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkspacesDir == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		c.WorkspacesDir = filepath.Join(dir, "workspaces")
	}
	return &c, c.Validate()
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	switch {
	case c.MaxRows < 1:
		return fmt.Errorf("max_rows must be >= 1, got %d", c.MaxRows)
	case c.SampleRows < 0:
		return fmt.Errorf("sample_rows must be >= 0, got %d", c.SampleRows)
	case c.SampleValues < 1:
		return fmt.Errorf("sample_values must be >= 1, got %d", c.SampleValues)
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	case c.MinCategoryRatio < 0 || c.MinCategoryRatio > 1:
		return fmt.Errorf("min_category_ratio must be within [0,1], got %g", c.MinCategoryRatio)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("confidence_threshold must be within [0,1], got %g", c.ConfidenceThreshold)
	case c.MaxCategories < 1:
		return fmt.Errorf("max_categories must be >= 1, got %d", c.MaxCategories)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Set assigns a value by key, parsing it to the field's type.
func (c *Global) Set(key, value string) error {
	atoi := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, value)
		}
		*dst = n
		return nil
	}
	atof := func(dst *float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key, value)
		}
		*dst = f
		return nil
	}
	var err error
	switch key {
	case "max_rows":
		err = atoi(&c.MaxRows)
	case "sample_rows":
		err = atoi(&c.SampleRows)
	case "sample_values":
		err = atoi(&c.SampleValues)
	case "table_name":
		c.TableName = value
	case "workers":
		err = atoi(&c.Workers)
	case "min_total_values":
		err = atoi(&c.MinTotalValues)
	case "min_category_ratio":
		err = atof(&c.MinCategoryRatio)
	case "max_categories":
		err = atoi(&c.MaxCategories)
	case "confidence_threshold":
		err = atof(&c.ConfidenceThreshold)
	case "small_set_max_categories":
		err = atoi(&c.SmallSetMaxCategories)
	case "workspaces_dir":
		c.WorkspacesDir = value
	case "postgres_dsn":
		c.PostgresDSN = value
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err != nil {
		return err
	}
	return c.Validate()
}
