// Package config loads, validates, and bootstraps the tardrop
// configuration: the managed directory layout, retention counts, and the
// optional YAML config file overlaid by CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost         = "127.0.0.1"
	DefaultKeepArchives = 8
	DefaultKeepExtracts = 4
	DefaultHookTimeout  = 300 // seconds
)

// Config is the full process configuration, immutable after startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
	Retention RetentionConfig `yaml:"retention"`
	History   HistoryConfig   `yaml:"history"`
	Hook      HookConfig      `yaml:"hook"`
}

// ServerConfig describes the listen address. The receiver is
// unauthenticated, so the default host is loopback only.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PathsConfig describes the managed directory layout.
type PathsConfig struct {
	ArchiveDir  string `yaml:"archive_dir"`
	ExtractDir  string `yaml:"extract_dir"`
	SymlinkPath string `yaml:"symlink_path"`
	TempDir     string `yaml:"temp_dir"`
}

// RetentionConfig holds the keep-counts applied after each successful
// deploy. A value of 0 disables vacuuming for that collection.
type RetentionConfig struct {
	KeepArchives int `yaml:"keep_archives"`
	KeepExtracts int `yaml:"keep_extracts"`
}

// HistoryConfig configures the SQLite upload history. An empty DBPath
// disables history recording.
type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

// HookConfig configures the optional post-deploy command. The command runs
// in the new release directory after the symlink swap.
type HookConfig struct {
	PostDeploy string `yaml:"post_deploy"`
	Timeout    int    `yaml:"timeout"`
}

// Default returns a Config populated with defaults. Path fields and the
// port have no sensible defaults and must be supplied by file or flags.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost},
		Paths:  PathsConfig{TempDir: os.TempDir()},
		Retention: RetentionConfig{
			KeepArchives: DefaultKeepArchives,
			KeepExtracts: DefaultKeepExtracts,
		},
		Hook: HookConfig{Timeout: DefaultHookTimeout},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and returns all problems at once so
// an operator can fix them in a single pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("  - server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	required := []struct {
		name  string
		value string
	}{
		{"paths.archive_dir", c.Paths.ArchiveDir},
		{"paths.extract_dir", c.Paths.ExtractDir},
		{"paths.symlink_path", c.Paths.SymlinkPath},
		{"paths.temp_dir", c.Paths.TempDir},
	}
	for _, f := range required {
		if f.value == "" {
			errs = append(errs, fmt.Sprintf("  - missing required '%s'", f.name))
		} else if !filepath.IsAbs(f.value) {
			errs = append(errs, fmt.Sprintf("  - %s must be absolute, got '%s'", f.name, f.value))
		}
	}

	if c.Paths.SymlinkPath != "" {
		// The pointer must not live inside the extraction root, or vacuum
		// would treat it as a release.
		if filepath.Dir(c.Paths.SymlinkPath) == filepath.Clean(c.Paths.ExtractDir) {
			errs = append(errs, "  - paths.symlink_path must not be directly inside paths.extract_dir")
		}
	}

	if c.Retention.KeepArchives < 0 {
		errs = append(errs, fmt.Sprintf("  - retention.keep_archives must be >= 0, got %d", c.Retention.KeepArchives))
	}
	if c.Retention.KeepExtracts < 0 {
		errs = append(errs, fmt.Sprintf("  - retention.keep_extracts must be >= 0, got %d", c.Retention.KeepExtracts))
	}

	if c.Hook.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("  - hook.timeout must be a positive number of seconds, got %d", c.Hook.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
