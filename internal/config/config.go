// Package config loads the haloqa YAML configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Datasets  Datasets  `yaml:"datasets"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Questions Questions `yaml:"questions"`
}

// Datasets lists the source files or directories read by "haloqa import".
type Datasets struct {
	Cases      []string `yaml:"cases"`
	Complaints []string `yaml:"complaints"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Questions struct {
	DefaultGroupBy []string `yaml:"default_group_by"`
}

// ConfigDir returns the XDG config directory for haloqa.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "haloqa")
}

// DataDir returns the XDG data directory for haloqa.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "haloqa")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/haloqa/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'haloqa init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging:   Logging{Level: "info"},
		Questions: Questions{DefaultGroupBy: []string{"portfolio"}},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("parsing config: server.port %d out of range", cfg.Server.Port)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the snapshot database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "haloqa.db")
}

// Sources returns the configured source paths per dataset name.
func (c *Config) Sources() map[string][]string {
	return map[string][]string{
		"cases":      c.Datasets.Cases,
		"complaints": c.Datasets.Complaints,
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
