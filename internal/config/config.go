package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/harrison/bookcheck/internal/report"
)

// EnvPrefix marks environment variables that override the config file.
// A double underscore separates nesting levels:
// BOOKCHECK_GATES__RUN__MIN_PASS_RATE -> gates.run.min_pass_rate.
const EnvPrefix = "BOOKCHECK_"

// GateConfig holds the thresholds for one command. Zero disables a check.
type GateConfig struct {
	MinPassRate        float64 `koanf:"min_pass_rate"`
	MinOverallCoverage float64 `koanf:"min_overall_coverage"`
	MaxTotalDurationMs int64   `koanf:"max_total_duration_ms"`
}

// GatesConfig groups thresholds by command.
type GatesConfig struct {
	Run      GateConfig `koanf:"run"`
	Heredoc  GateConfig `koanf:"heredoc"`
	Status   GateConfig `koanf:"status"`
	Coverage GateConfig `koanf:"coverage"`
}

// MarkersConfig lists the output substrings the classifier looks for.
type MarkersConfig struct {
	HardError      []string `koanf:"hard_error"`
	NotImplemented []string `koanf:"not_implemented"`
	ExpectedError  []string `koanf:"expected_error"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	DBPath  string `koanf:"db_path"`
}

// Config represents bookcheck configuration options
type Config struct {
	// Language is the fence info string that selects examples ("ruchy")
	Language string `koanf:"language"`

	// Extension is used when materializing examples without a file name
	Extension string `koanf:"extension"`

	// ToolBinary is the executable behind the built-in tool catalog
	ToolBinary string `koanf:"tool_binary"`

	// BookDir holds the markdown chapters
	BookDir string `koanf:"book_dir"`

	// ScriptsDir holds the per-chapter heredoc test scripts
	ScriptsDir string `koanf:"scripts_dir"`

	// ReportPath is where the JSON report artifact is written
	ReportPath string `koanf:"report_path"`

	// ToolsFile is an optional YAML tool catalog replacing the built-in one
	ToolsFile string `koanf:"tools_file"`

	// MaxConcurrency caps concurrent tool processes (0 = number of CPUs)
	MaxConcurrency int `koanf:"max_concurrency"`

	// DefaultTimeout applies to catalog tools without their own timeout
	DefaultTimeout time.Duration `koanf:"default_timeout"`

	// OutputLimit is the per-stream capture budget in bytes
	OutputLimit int `koanf:"output_limit_bytes"`

	// LogLevel sets the console verbosity (trace, debug, info, warn, error)
	LogLevel string `koanf:"log_level"`

	// LogDir receives the structured run logs
	LogDir string `koanf:"log_dir"`

	// VersionCommand prints the toolchain version recorded in the report
	VersionCommand []string `koanf:"version_command"`

	// MetricsFile, when set, receives a Prometheus textfile after each run
	MetricsFile string `koanf:"metrics_file"`

	Markers MarkersConfig `koanf:"markers"`
	Gates   GatesConfig   `koanf:"gates"`
	History HistoryConfig `koanf:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Language:       "ruchy",
		Extension:      ".ruchy",
		ToolBinary:     "ruchy",
		BookDir:        "src",
		ScriptsDir:     "test",
		ReportPath:     report.DefaultArtifactPath,
		MaxConcurrency: runtime.NumCPU(),
		DefaultTimeout: 30 * time.Second,
		OutputLimit:    500,
		LogLevel:       "info",
		LogDir:         ".bookcheck/logs",
		VersionCommand: []string{"ruchy", "--version"},
		Markers: MarkersConfig{
			HardError:      []string{"Error:"},
			NotImplemented: []string{"not yet implemented", "not implemented"},
			ExpectedError:  []string{"expect-error", "expected error", "should fail"},
		},
		Gates: GatesConfig{
			Run:      GateConfig{MinPassRate: 95},
			Heredoc:  GateConfig{MinPassRate: 95},
			Status:   GateConfig{MinPassRate: 100},
			Coverage: GateConfig{MinOverallCoverage: 80},
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".bookcheck/history.db",
		},
	}
}

// listKeys are the slice-valued keys. A configured list replaces the default
// list instead of being merged into it element by element.
var listKeys = []string{"version_command", "markers.hard_error", "markers.not_implemented", "markers.expected_error"}

// LoadConfig loads configuration from the specified file path, then applies
// BOOKCHECK_* environment overrides.
// If the file doesn't exist, the defaults are used without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultConfig()
	for _, key := range listKeys {
		if k.Exists(key) {
			clearList(cfg, key)
		}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if !strings.HasPrefix(cfg.Extension, ".") && cfg.Extension != "" {
		cfg.Extension = "." + cfg.Extension
	}
	return cfg, nil
}

// envTransform maps BOOKCHECK_GATES__RUN__MIN_PASS_RATE to gates.run.min_pass_rate.
// List values are comma separated.
func envTransform(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	for _, list := range listKeys {
		if key == list {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
	}
	return key, value
}

func clearList(cfg *Config, key string) {
	switch key {
	case "version_command":
		cfg.VersionCommand = nil
	case "markers.hard_error":
		cfg.Markers.HardError = nil
	case "markers.not_implemented":
		cfg.Markers.NotImplemented = nil
	case "markers.expected_error":
		cfg.Markers.ExpectedError = nil
	}
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(maxConcurrency *int, timeout *time.Duration, logLevel *string, metricsFile *string) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.DefaultTimeout = *timeout
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if metricsFile != nil {
		c.MetricsFile = *metricsFile
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be > 0, got %v", c.DefaultTimeout)
	}
	if c.OutputLimit <= 0 {
		return fmt.Errorf("output_limit_bytes must be > 0, got %d", c.OutputLimit)
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.ReportPath == "" {
		return fmt.Errorf("report_path cannot be empty")
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	gates := map[string]GateConfig{
		"run":      c.Gates.Run,
		"heredoc":  c.Gates.Heredoc,
		"status":   c.Gates.Status,
		"coverage": c.Gates.Coverage,
	}
	for _, name := range []string{"run", "heredoc", "status", "coverage"} {
		g := gates[name]
		if g.MinPassRate < 0 || g.MinPassRate > 100 {
			return fmt.Errorf("gates.%s.min_pass_rate must be within [0, 100], got %v", name, g.MinPassRate)
		}
		if g.MinOverallCoverage < 0 || g.MinOverallCoverage > 100 {
			return fmt.Errorf("gates.%s.min_overall_coverage must be within [0, 100], got %v", name, g.MinOverallCoverage)
		}
		if g.MaxTotalDurationMs < 0 {
			return fmt.Errorf("gates.%s.max_total_duration_ms must be >= 0, got %d", name, g.MaxTotalDurationMs)
		}
	}

	return nil
}
