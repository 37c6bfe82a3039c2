package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// LocalConfigFile is the project-local developer config filename.
const LocalConfigFile = "dream2nix.local.toml"

// DefaultCacheSize is the resolver's in-memory artifact cache size when no
// config sets one.
const DefaultCacheSize = 128

// DevConfig holds developer-specific configuration that is NOT committed
// to version control. It is resolved with Viper precedence:
// CLI flags > dream2nix.local.toml (project-local) > ~/.dream2nix/config.toml (global).
type DevConfig struct {
	// StoreRoot overrides where fetched artifacts are stored.
	// Empty means ~/.dream2nix.
	StoreRoot string `toml:"store_root,omitempty" mapstructure:"store_root"`
	// StrictShortcuts makes shortcut parsing fail when more than one
	// fetcher claims the same string, instead of taking the first match.
	StrictShortcuts bool `toml:"strict_shortcuts,omitempty" mapstructure:"strict_shortcuts"`
	// CacheSize bounds the resolver's in-memory artifact cache.
	// Zero disables caching.
	CacheSize int `toml:"cache_size,omitempty" mapstructure:"cache_size"`
	// Verbose enables debug logging.
	Verbose bool `toml:"verbose,omitempty" mapstructure:"verbose"`
}

// LoadDevConfig resolves developer configuration using Viper's merge semantics.
// overrides, if non-empty, takes highest precedence (values set via CLI
// flags); keys match the toml names above.
func LoadDevConfig(overrides map[string]any) (*DevConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	globalPath := filepath.Join(home, ".dream2nix", "config.toml")
	return loadDevConfig(overrides, globalPath, LocalConfigFile)
}

// loadDevConfig is the internal implementation that accepts explicit paths,
// making it testable without touching the real home directory.
func loadDevConfig(overrides map[string]any, globalPath, localPath string) (*DevConfig, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetDefault("cache_size", DefaultCacheSize)

	// Lowest priority: global config
	v.SetConfigFile(globalPath)
	// Read global config; ignore if missing.
	_ = v.ReadInConfig()

	// Higher priority: project-local config
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	// Highest priority: CLI flags
	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg := &DevConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling dev config: %w", err)
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.dream2nix, creating it if necessary.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	dir := filepath.Join(home, ".dream2nix")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// WriteLocalDevConfig persists developer config to dream2nix.local.toml in
// the given project directory.
func WriteLocalDevConfig(projectDir string, cfg *DevConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling dev config: %w", err)
	}

	path := filepath.Join(projectDir, LocalConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// WriteGlobalDevConfig persists developer config to ~/.dream2nix/config.toml.
func WriteGlobalDevConfig(cfg *DevConfig) error {
	dir, err := GlobalConfigDir()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling dev config: %w", err)
	}

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
