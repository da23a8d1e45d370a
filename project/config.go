package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

const (
	ConfigYAML       = "smithyql.yaml"
	ConfigTOML       = "smithyql.toml"
	DefaultExtension = ".smithyql"
)

// Config describes where a project's query files live and where build
// output goes. It is read from smithyql.yaml or smithyql.toml.
type Config struct {
	Name         string   `yaml:"name" toml:"name"`
	Sources      []string `yaml:"sources" toml:"sources"`
	Extension    string   `yaml:"extension" toml:"extension"`
	OutputDir    string   `yaml:"output_dir" toml:"output_dir"`
	OutputFormat string   `yaml:"output_format" toml:"output_format"`
	Exclude      []string `yaml:"exclude" toml:"exclude"`
	LogLevel     string   `yaml:"log_level" toml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Sources:      []string{"."},
		Extension:    DefaultExtension,
		OutputDir:    "generated",
		OutputFormat: "yaml",
		LogLevel:     "info",
	}
}

// LoadConfig reads a YAML or TOML config file, chosen by extension. Keys
// missing from the file keep their defaults; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig looks for smithyql.yaml, then smithyql.toml, in dir. When
// neither exists it returns the defaults and an empty path.
func FindConfig(dir string) (*Config, string, error) {
	for _, name := range []string{ConfigYAML, ConfigTOML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadConfig(path)
			return cfg, path, err
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
	}
	return DefaultConfig(), "", nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("extension %q must start with '.'", c.Extension)
	}
	switch c.OutputFormat {
	case "yaml", "json":
	default:
		return fmt.Errorf("output_format must be yaml or json, got %q", c.OutputFormat)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source directory is required")
	}
	return nil
}
