package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/matcher"
	"gopkg.in/yaml.v3"
)

// Config is the atomsel configuration file. Command-line flags override it.
type Config struct {
	// Rules is a rule file or directory. Empty selects the built-in rules.
	Rules string `yaml:"rules"`

	Compile CompileConfig `yaml:"compile"`
	Scan    ScanConfig    `yaml:"scan"`

	// Cache is the SQLite database holding atom selections. Empty disables
	// caching.
	Cache string `yaml:"cache"`
}

// CompileConfig controls atom extraction and selection.
type CompileConfig struct {
	Limits  literal.Limits `yaml:"limits"`
	Workers int            `yaml:"workers"`
}

// ScanConfig controls the scan command.
type ScanConfig struct {
	MaxFileSize    int64  `yaml:"max_file_size"`
	IncludeHidden  bool   `yaml:"include_hidden"`
	SkipBinary     bool   `yaml:"skip_binary"`
	SnippetContext int    `yaml:"snippet_context"`
	Engine         string `yaml:"engine"` // default or hyperscan
	Dedupe         string `yaml:"dedupe"` // location or content
	MaxMatches     int    `yaml:"max_matches_per_rule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Compile: CompileConfig{
			Limits:  literal.DefaultLimits(),
			Workers: runtime.NumCPU(),
		},
		Scan: ScanConfig{
			MaxFileSize:    10 * 1024 * 1024,
			SnippetContext: 32,
			Engine:         string(matcher.EngineDefault),
			Dedupe:         matcher.DedupeByLocation.String(),
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values the document does not set,
// and validates the result. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	l := c.Compile.Limits
	if l.MaxAtomLen < 0 || l.MaxSeqLen < 0 || l.MaxClassSize < 0 || l.MaxRepeat < 0 {
		return fmt.Errorf("compile limits must not be negative")
	}
	if c.Compile.Workers < 0 {
		return fmt.Errorf("compile workers must not be negative")
	}
	if c.Scan.MaxFileSize < 0 {
		return fmt.Errorf("scan max_file_size must not be negative")
	}
	if c.Scan.SnippetContext < 0 {
		return fmt.Errorf("scan snippet_context must not be negative")
	}
	if c.Scan.MaxMatches < 0 {
		return fmt.Errorf("scan max_matches_per_rule must not be negative")
	}
	if _, err := matcher.ParseEngine(c.Scan.Engine); err != nil {
		return err
	}
	if _, err := matcher.ParseDedupeMode(c.Scan.Dedupe); err != nil {
		return err
	}
	return nil
}
