// Package config loads and validates the vfskit configuration from YAML
// files and VFSKIT_* environment variables. Environment values override file
// values; both override the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vfskit/vfskit/internal/logging"
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/internal/mount"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Mount   MountConfig     `yaml:"mount"`
	Logging *logging.Config `yaml:"logging"`
	Metrics *metrics.Config `yaml:"metrics"`
}

// MountConfig represents mount settings.
type MountConfig struct {
	MountPoint   string        `yaml:"mount_point"`
	ReadOnly     bool          `yaml:"read_only"`
	AllowOther   bool          `yaml:"allow_other"`
	Debug        bool          `yaml:"debug"`
	CacheTimeout time.Duration `yaml:"cache_timeout"`
	MaxRead      int           `yaml:"max_read"`
	MaxWrite     int           `yaml:"max_write"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	defaults := mount.DefaultOptions()
	return &Configuration{
		Mount: MountConfig{
			CacheTimeout: defaults.CacheTimeout,
			MaxRead:      defaults.MaxRead,
			MaxWrite:     defaults.MaxWrite,
		},
		Logging: logging.DefaultConfig(),
		Metrics: metrics.DefaultConfig(),
	}
}

// LoadFromFile merges a YAML file into the configuration.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv merges VFSKIT_* environment variables into the configuration.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("VFSKIT_MOUNT_POINT"); val != "" {
		c.Mount.MountPoint = val
	}
	if val := os.Getenv("VFSKIT_READ_ONLY"); val != "" {
		c.Mount.ReadOnly = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("VFSKIT_ALLOW_OTHER"); val != "" {
		c.Mount.AllowOther = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("VFSKIT_DEBUG"); val != "" {
		c.Mount.Debug = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("VFSKIT_CACHE_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Mount.CacheTimeout = duration
		}
	}
	if val := os.Getenv("VFSKIT_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("VFSKIT_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
	if val := os.Getenv("VFSKIT_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("VFSKIT_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Configuration) Validate() error {
	if c.Mount.MountPoint == "" {
		return fmt.Errorf("mount_point must be set")
	}
	if c.Mount.CacheTimeout < 0 {
		return fmt.Errorf("cache_timeout must be non-negative")
	}
	if c.Mount.MaxRead < 0 || c.Mount.MaxWrite < 0 {
		return fmt.Errorf("max_read and max_write must be non-negative")
	}
	if c.Metrics != nil && c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1 and 65535")
	}
	if c.Logging != nil {
		valid := []string{"DEBUG", "INFO", "WARN", "ERROR"}
		ok := false
		for _, level := range valid {
			if strings.ToUpper(c.Logging.Level) == level {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid log level: %s (must be one of: %s)",
				c.Logging.Level, strings.Join(valid, ", "))
		}
	}
	return nil
}

// MountOptions converts the mount section into the options record the mount
// package consumes.
func (c *Configuration) MountOptions() *mount.MountOptions {
	return &mount.MountOptions{
		ReadOnly:     c.Mount.ReadOnly,
		AllowOther:   c.Mount.AllowOther,
		Debug:        c.Mount.Debug,
		CacheTimeout: c.Mount.CacheTimeout,
		MaxRead:      c.Mount.MaxRead,
		MaxWrite:     c.Mount.MaxWrite,
	}
}
