// Package config holds the application configuration, loaded once at startup
// from an optional YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Library  LibraryConfig  `yaml:"library" json:"library"`
	Watcher  WatcherConfig  `yaml:"watcher" json:"watcher"`
	Scanner  ScannerConfig  `yaml:"scanner" json:"scanner"`
	Tasks    TaskConfig     `yaml:"tasks" json:"tasks"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// DatabaseConfig selects and parameterizes the database backend
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type"` // "sqlite" or "postgres"
	Path     string `yaml:"path" json:"path"` // sqlite file path
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
}

// LibraryConfig bounds where library roots may live
type LibraryConfig struct {
	// BaseDir is the directory every library root must resolve under.
	BaseDir string `yaml:"base_dir" json:"base_dir"`
}

// WatcherConfig parameterizes filesystem change detection
type WatcherConfig struct {
	// DebounceWindow is the quiet period after the last change before a
	// coalesced scan request is dispatched.
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window"`
	// PollInterval is the sleep between iterations of a poll-mode watcher.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// StopTimeout bounds how long teardown waits for an event-mode watcher
	// goroutine to exit.
	StopTimeout time.Duration `yaml:"stop_timeout" json:"stop_timeout"`
}

// ScannerConfig parameterizes scan execution
type ScannerConfig struct {
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	ThrottleEnabled bool          `yaml:"throttle_enabled" json:"throttle_enabled"`
	CPUHighWater    float64       `yaml:"cpu_high_water" json:"cpu_high_water"`
	ThrottlePause   time.Duration `yaml:"throttle_pause" json:"throttle_pause"`
}

// TaskConfig parameterizes the background task registry
type TaskConfig struct {
	// HistoryLimit caps how many finished task results are retained.
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration defaults applied before any file or
// environment override.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:     "sqlite",
			Path:     "./data/muse.db",
			Host:     "localhost",
			Port:     5432,
			Username: "muse",
			Database: "muse",
		},
		Library: LibraryConfig{
			BaseDir: "/data/media",
		},
		Watcher: WatcherConfig{
			DebounceWindow: 2 * time.Second,
			PollInterval:   time.Minute,
			StopTimeout:    5 * time.Second,
		},
		Scanner: ScannerConfig{
			BatchSize:       50,
			ThrottleEnabled: true,
			CPUHighWater:    85.0,
			ThrottlePause:   250 * time.Millisecond,
		},
		Tasks: TaskConfig{
			HistoryLimit: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped if the file does not exist), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Type, "MUSE_DATABASE_TYPE")
	setString(&c.Database.Path, "MUSE_DATABASE_PATH")
	setString(&c.Database.Host, "POSTGRES_HOST")
	setInt(&c.Database.Port, "POSTGRES_PORT")
	setString(&c.Database.Username, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.Database, "POSTGRES_DB")
	setString(&c.Library.BaseDir, "MUSE_MEDIA_DIR")
	setDuration(&c.Watcher.DebounceWindow, "MUSE_DEBOUNCE_WINDOW")
	setDuration(&c.Watcher.PollInterval, "MUSE_POLL_INTERVAL")
	setInt(&c.Scanner.BatchSize, "MUSE_SCAN_BATCH_SIZE")
	setString(&c.Logging.Level, "MUSE_LOG_LEVEL")
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Watcher.DebounceWindow <= 0 {
		return fmt.Errorf("watcher debounce window must be positive")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher poll interval must be positive")
	}
	if c.Scanner.BatchSize <= 0 {
		return fmt.Errorf("scanner batch size must be positive")
	}
	if c.Tasks.HistoryLimit <= 0 {
		return fmt.Errorf("task history limit must be positive")
	}
	return nil
}

// DefaultConfigPath returns the configuration file path, preferring the
// current directory over the data directory.
func DefaultConfigPath() string {
	if _, err := os.Stat("muse.yml"); err == nil {
		return "muse.yml"
	}
	dataDir := os.Getenv("MUSE_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	return dataDir + "/muse.yml"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
