// Package logging configures the process-wide logger. Output goes to stderr
// by default and to a size-rotated file when one is configured.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config represents logging configuration.
type Config struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns stderr-only logging at INFO.
func DefaultConfig() *Config {
	return &Config{
		Level:      "INFO",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var currentLevel int64 = levelInfo

func parseLevel(s string) (int64, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return levelDebug, nil
	case "INFO", "":
		return levelInfo, nil
	case "WARN", "WARNING":
		return levelWarn, nil
	case "ERROR":
		return levelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be one of: DEBUG, INFO, WARN, ERROR)", s)
	}
}

// Setup applies the configuration to the standard logger. Call once at
// startup, before anything logs.
func Setup(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	atomic.StoreInt64(&currentLevel, level)

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

func logf(level int64, prefix, format string, args ...interface{}) {
	if level < atomic.LoadInt64(&currentLevel) {
		return
	}
	log.Printf(prefix+format, args...)
}

// Debugf logs at DEBUG.
func Debugf(format string, args ...interface{}) { logf(levelDebug, "DEBUG ", format, args...) }

// Infof logs at INFO.
func Infof(format string, args ...interface{}) { logf(levelInfo, "INFO ", format, args...) }

// Warnf logs at WARN.
func Warnf(format string, args ...interface{}) { logf(levelWarn, "WARN ", format, args...) }

// Errorf logs at ERROR.
func Errorf(format string, args ...interface{}) { logf(levelError, "ERROR ", format, args...) }
