package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the project manifest filename.
const ManifestFileName = "dream2nix.toml"

type Config struct {
	Project ProjectConfig           `toml:"project"`
	Sources map[string]SourceConfig `toml:"sources,omitempty"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

// SourceConfig describes one named source in the manifest, either as a
// shortcut string or as an explicit kind plus field values.
type SourceConfig struct {
	// Short form, e.g. "owner/repo@v1" or "git+https://host/repo.git@main".
	Short string `toml:"short,omitempty"`

	Kind   string            `toml:"kind,omitempty"`
	Fields map[string]string `toml:"fields,omitempty"`
}

// Validate checks that exactly one of the short and explicit forms is set.
func (s SourceConfig) Validate() error {
	if s.Short != "" && s.Kind != "" {
		return fmt.Errorf("short and kind are mutually exclusive")
	}
	if s.Short == "" && s.Kind == "" {
		return fmt.Errorf("either short or kind must be set")
	}
	return nil
}

func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	err := toml.Unmarshal(data, cfg)

	return cfg, err
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return UnmarshalConfig(data)
}

func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
