package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment, so
// log_level is overridden by ODOGEN_LOG_LEVEL.
const EnvPrefix = "ODOGEN"

// Config is the top-level configuration for odogen.
type Config struct {
	// Prefix is prepended to every emitted module name.
	Prefix string `mapstructure:"prefix"`

	// Output is the artifact path; empty or "-" means stdout.
	Output string `mapstructure:"output"`

	// Manifest is an optional path for the JSON generation manifest.
	Manifest string `mapstructure:"manifest"`

	// SpecFile replaces seed derivation with a JSON cipher spec.
	SpecFile string `mapstructure:"spec_file"`

	// OutDir receives batch artifacts.
	OutDir string `mapstructure:"out_dir"`

	// Workers bounds concurrent batch generations (0 = one per throughput).
	Workers int `mapstructure:"workers"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is auto (console on a terminal, JSON otherwise), console or json.
	LogFormat string `mapstructure:"log_format"`

	// Timing appends per-stage durations as JSON lines.
	Timing bool `mapstructure:"timing"`

	// TimingPath is the JSONL file for stage timings.
	TimingPath string `mapstructure:"timing_path"`

	// DiagramFormat is svg, png or dot.
	DiagramFormat string `mapstructure:"diagram_format"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-"`
}

var (
	logLevels      = []string{"debug", "info", "warn", "error"}
	logFormats     = []string{"auto", "console", "json"}
	diagramFormats = []string{"svg", "png", "dot"}
)

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Output:        "-",
		OutDir:        ".",
		LogLevel:      "info",
		LogFormat:     "auto",
		TimingPath:    "odogen_timing.jsonl",
		DiagramFormat: "svg",
	}
}

// SetDefaults registers every key with its default so environment
// variables and flags are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("prefix", d.Prefix)
	v.SetDefault("output", d.Output)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("spec_file", d.SpecFile)
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("timing", d.Timing)
	v.SetDefault("timing_path", d.TimingPath)
	v.SetDefault("diagram_format", d.DiagramFormat)
}

// SearchPaths lists candidate config files in priority order:
//  1. ./.odogen.yaml (current working directory)
//  2. ./odogen.yaml
//  3. ~/.config/odogen/config.yaml
func SearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(cwd, ".odogen.yaml"),
			filepath.Join(cwd, "odogen.yaml"),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "odogen", "config.yaml"))
	}
	return paths
}

// Load resolves the configuration from defaults, the first config file
// found (or explicitPath), ODOGEN_* environment variables and any flags
// already bound to v, in increasing order of precedence.
func Load(v *viper.Viper, explicitPath string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	path := explicitPath
	if path == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in values that were explicitly set empty.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Output == "" {
		c.Output = d.Output
	}
	if c.OutDir == "" {
		c.OutDir = d.OutDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.TimingPath == "" {
		c.TimingPath = d.TimingPath
	}
	if c.DiagramFormat == "" {
		c.DiagramFormat = d.DiagramFormat
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.DiagramFormat = strings.ToLower(c.DiagramFormat)
}

// Validate rejects enumerated keys with unknown values.
func (c *Config) Validate() error {
	if !oneOf(c.LogLevel, logLevels) {
		return fmt.Errorf("config: log_level %q, want one of %s", c.LogLevel, strings.Join(logLevels, ", "))
	}
	if !oneOf(c.LogFormat, logFormats) {
		return fmt.Errorf("config: log_format %q, want one of %s", c.LogFormat, strings.Join(logFormats, ", "))
	}
	if !oneOf(c.DiagramFormat, diagramFormats) {
		return fmt.Errorf("config: diagram_format %q, want one of %s", c.DiagramFormat, strings.Join(diagramFormats, ", "))
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.Set("prefix", c.Prefix)
	v.Set("output", c.Output)
	v.Set("manifest", c.Manifest)
	v.Set("spec_file", c.SpecFile)
	v.Set("out_dir", c.OutDir)
	v.Set("workers", c.Workers)
	v.Set("log_level", c.LogLevel)
	v.Set("log_format", c.LogFormat)
	v.Set("timing", c.Timing)
	v.Set("timing_path", c.TimingPath)
	v.Set("diagram_format", c.DiagramFormat)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
