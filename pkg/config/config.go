// Package config provides configuration loading and management for microsimview.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"microsimview/pkg/logging"
)

// Contrast normalisation modes
const (
	// ModeGlobal maps the percentage contrast window against the channel's global stats
	ModeGlobal = "global"

	// ModePlane remaps the observed min..max of each plane to 0..1
	ModePlane = "plane"
)

// Filler patterns used when a slice fetch fails
const (
	FillerZero         = "zero"
	FillerCheckerboard = "checkerboard"
)

// Config represents the application configuration
type Config struct {
	// Backend server parameters
	Server struct {
		// Address is the host:port the backend listens on
		Address string `yaml:"address" toml:"address"`

		// CORSOrigins lists the origins allowed to call the API
		CORSOrigins []string `yaml:"corsOrigins" toml:"cors_origins"`

		// PlaneCacheMB bounds the encoded plane cache
		PlaneCacheMB int `yaml:"planeCacheMB" toml:"plane_cache_mb"`

		// Gzip enables compressed responses
		Gzip bool `yaml:"gzip" toml:"gzip"`
	} `yaml:"server" toml:"server"`

	// Simulation client parameters
	Client struct {
		// ServerURL is the base URL of the backend
		ServerURL string `yaml:"serverURL" toml:"server_url"`

		// TimeoutSeconds bounds each request
		TimeoutSeconds int `yaml:"timeoutSeconds" toml:"timeout_seconds"`

		// Lazy fetches slices on demand instead of shipping the whole volume
		Lazy bool `yaml:"lazy" toml:"lazy"`

		// PlaneCacheEntries is the number of fetched planes kept in memory
		PlaneCacheEntries int `yaml:"planeCacheEntries" toml:"plane_cache_entries"`

		// Filler selects the pattern substituted for failed slice fetches
		Filler string `yaml:"filler" toml:"filler"`

		// Snappy requests snappy-compressed slice bodies in lazy mode
		Snappy bool `yaml:"snappy" toml:"snappy"`
	} `yaml:"client" toml:"client"`

	// Viewer display parameters
	Viewer struct {
		// MinDisplaySize is the smallest side length a frame is shown at
		MinDisplaySize int `yaml:"minDisplaySize" toml:"min_display_size"`

		// ContrastMode is ModeGlobal or ModePlane
		ContrastMode string `yaml:"contrastMode" toml:"contrast_mode"`
	} `yaml:"viewer" toml:"viewer"`

	// Logging parameters
	Logging logging.LogConfig `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = "localhost:8000"
	cfg.Server.CORSOrigins = []string{
		"http://localhost:5173",
		"http://localhost:5174",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:5174",
	}
	cfg.Server.PlaneCacheMB = 64
	cfg.Server.Gzip = true

	cfg.Client.ServerURL = "http://localhost:8000"
	cfg.Client.TimeoutSeconds = 300
	cfg.Client.Lazy = false
	cfg.Client.PlaneCacheEntries = 256
	cfg.Client.Filler = FillerZero

	cfg.Viewer.MinDisplaySize = 512
	cfg.Viewer.ContrastMode = ModeGlobal

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 28

	return cfg
}

// Validate checks enumerated fields and ranges
func (c *Config) Validate() error {
	switch c.Viewer.ContrastMode {
	case ModeGlobal, ModePlane:
	default:
		return fmt.Errorf("invalid contrast mode %q (must be %s or %s)", c.Viewer.ContrastMode, ModeGlobal, ModePlane)
	}
	switch c.Client.Filler {
	case FillerZero, FillerCheckerboard:
	default:
		return fmt.Errorf("invalid filler pattern %q (must be %s or %s)", c.Client.Filler, FillerZero, FillerCheckerboard)
	}
	if c.Viewer.MinDisplaySize < 0 {
		return fmt.Errorf("minDisplaySize must be non-negative, got %d", c.Viewer.MinDisplaySize)
	}
	if c.Client.PlaneCacheEntries < 0 {
		return fmt.Errorf("planeCacheEntries must be non-negative, got %d", c.Client.PlaneCacheEntries)
	}
	if _, err := logging.ParseMode(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Timeout returns the client request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Client.TimeoutSeconds) * time.Second
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration, choosing TOML or YAML by file extension
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
