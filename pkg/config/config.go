// Package config loads and validates codematch's configuration: detection
// parameters, file discovery patterns, caching and output settings. Layering
// (defaults, then an optional file) and the validation pattern follow the
// teacher repository's pkg/config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for codematch.
type Config struct {
	Detection DetectionConfig `koanf:"detection" toml:"detection"`
	Exclude   ExcludeConfig   `koanf:"exclude" toml:"exclude"`
	Cache     CacheConfig     `koanf:"cache" toml:"cache"`
	Output    OutputConfig    `koanf:"output" toml:"output"`
}

// DetectionConfig controls the winnowing engine's parameters.
type DetectionConfig struct {
	KGramSize       int     `koanf:"kgram_size" toml:"kgram_size"`
	WindowSize      int     `koanf:"window_size" toml:"window_size"`
	SyntacticWeight float64 `koanf:"syntactic_weight" toml:"syntactic_weight"`
	MinOccurrences  int     `koanf:"min_occurrences" toml:"min_occurrences"`
	GapTolerance    int     `koanf:"gap_tolerance" toml:"gap_tolerance"`
	DriftBand       int     `koanf:"drift_band" toml:"drift_band"`

	// Threshold overrides the adaptive table with a fixed decision
	// threshold when non-zero. A zero value means "use adaptive".
	Threshold float64 `koanf:"threshold" toml:"threshold"`

	// MaxFileSize bounds the size (bytes) of files considered for
	// comparison; 0 means no limit.
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"`
}

// ExcludeConfig defines file exclusion patterns using gitignore-style syntax.
// Patterns are combined with the repository's .gitignore file when Gitignore
// is true.
type ExcludeConfig struct {
	// Patterns uses gitignore syntax for excluding files:
	//   - "*_test.pas"    matches any file ending in _test.pas
	//   - "vendor/"       matches the vendor directory
	//   - "!important.pas" negates a previous pattern (include the file)
	Patterns []string `koanf:"patterns" toml:"patterns"`

	// Gitignore controls whether to also respect .gitignore files.
	Gitignore bool `koanf:"gitignore" toml:"gitignore"`

	// Extensions lists the file extensions scanned for Pascal-family
	// source. Matching is case-insensitive.
	Extensions []string `koanf:"extensions" toml:"extensions"`
}

// CacheConfig controls the on-disk cache of detect results between runs.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls report formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with the defaults named by the detection
// engine's own component contracts (K=8, W=15, syntacticWeight=1.0, gap
// tolerance 1, drift band 1, minOccurrences 1).
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			KGramSize:       8,
			WindowSize:      15,
			SyntacticWeight: 1.0,
			MinOccurrences:  1,
			GapTolerance:    1,
			DriftBand:       1,
			MaxFileSize:     5 * 1024 * 1024, // 5 MB default
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_test.pas",
				"**/test/**",
				"**/tests/**",
				"**/spec/**",
				"vendor/",
				".git/",
				".codematch/",
				"dist/",
				"build/",
				"out/",
				"bin/",
			},
			Gitignore:  true,
			Extensions: []string{".pas", ".pp", ".inc", ".dpr", ".lpr"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".codematch/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, using DefaultConfig as the base that
// the file's values are merged over.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path if found, or empty string if not found.
func FindConfigFile() string {
	configNames := []string{
		"codematch.toml",
		"codematch.yaml",
		"codematch.yml",
		"codematch.json",
	}
	searchDirs := []string{".", ".codematch"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOption configures how configuration is loaded.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath specifies an explicit config file path. If the path doesn't
// exist, an error is returned.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadResult contains the loaded configuration and metadata.
type LoadResult struct {
	Config *Config
	Source string // Path to the config file, empty if using defaults
}

// LoadConfig loads configuration with the provided options. If no path is
// specified, it searches standard locations. Returns defaults if no config
// file is found. Always validates the config before returning.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cfg *Config
	var source string
	var err error

	if o.path != "" {
		if _, statErr := os.Stat(o.path); os.IsNotExist(statErr) {
			return nil, fmt.Errorf("config file not found: %s", o.path)
		}
		cfg, err = Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", o.path, err)
		}
		source = o.path
	} else {
		source = FindConfigFile()
		if source == "" {
			cfg = DefaultConfig()
		} else {
			cfg, err = Load(source)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", source, err)
			}
		}
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("config validation failed: %w", validationErr)
	}

	return &LoadResult{Config: cfg, Source: source}, nil
}

// LoadOrDefault loads config from standard locations or returns defaults.
func LoadOrDefault() (*Config, error) {
	result, err := LoadConfig()
	if err != nil {
		if FindConfigFile() == "" {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return result.Config, nil
}

// ErrFileTooLarge is returned when a file exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// IsFileTooLarge reports whether size exceeds maxSize. A maxSize of 0 means
// no limit is enforced.
func IsFileTooLarge(size int64, maxSize int64) bool {
	if maxSize <= 0 {
		return false
	}
	return size > maxSize
}

// Validate checks that all config values are within acceptable ranges,
// mirroring the ErrInvalidParameter contract enforced at engine
// construction.
func (c *Config) Validate() error {
	var errs []error

	if c.Detection.KGramSize < 2 {
		errs = append(errs, errors.New("detection.kgram_size must be at least 2"))
	}
	if c.Detection.WindowSize < 1 {
		errs = append(errs, errors.New("detection.window_size must be at least 1"))
	}
	if c.Detection.SyntacticWeight < 0 {
		errs = append(errs, errors.New("detection.syntactic_weight must be non-negative"))
	}
	if c.Detection.MinOccurrences < 1 {
		errs = append(errs, errors.New("detection.min_occurrences must be at least 1"))
	}
	if c.Detection.GapTolerance < 0 {
		errs = append(errs, errors.New("detection.gap_tolerance must be non-negative"))
	}
	if c.Detection.DriftBand < 0 {
		errs = append(errs, errors.New("detection.drift_band must be non-negative"))
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		errs = append(errs, errors.New("detection.threshold must be between 0 and 1"))
	}
	if c.Detection.MaxFileSize < 0 {
		errs = append(errs, errors.New("detection.max_file_size must be non-negative"))
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must be non-negative"))
	}

	switch c.Output.Format {
	case "text", "json", "markdown", "toon":
	default:
		errs = append(errs, fmt.Errorf("output.format must be one of text, json, markdown, toon, got %q", c.Output.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShouldExclude does basic filename-only pattern matching; full gitignore
// semantics (directories, globstar, negation) are handled by the scanner.
func (c *Config) ShouldExclude(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if strings.HasSuffix(pattern, "/") || strings.Contains(pattern, "/") {
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
