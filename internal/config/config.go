package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the editor's on-disk configuration.
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Autosave    AutosaveConfig    `yaml:"autosave"`
	Dictation   DictationConfig   `yaml:"dictation"`
	ImageSearch ImageSearchConfig `yaml:"image_search"`
	Export      ExportConfig      `yaml:"export"`
}

// StorageConfig selects where decks are kept. sqlite needs only Path; the
// server drivers use Host/Port/User/Database and look the password up in
// the secret store under PasswordKey.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite, mysql, postgres, mongodb
	Path        string `yaml:"path"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"ssl_mode"`
	PasswordKey string `yaml:"password_key"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

type AutosaveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type DictationConfig struct {
	Locale string `yaml:"locale"`
}

type ImageSearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

type ExportConfig struct {
	Directory string `yaml:"directory"`
}

// Drivers lists the supported storage backends.
var Drivers = []string{"sqlite", "mysql", "postgres", "mongodb"}

// Locales lists the two dictation languages the editor switches between.
var Locales = []string{"en-US", "ko-KR"}

// DefaultPath is ~/.config/slides/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "slides", "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "slides")
	return &Config{
		DataDir: dataDir,
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(dataDir, "slides.db"),
			PasswordKey: "slides-storage",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "slides.log"),
		},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
		Dictation: DictationConfig{Locale: "en-US"},
		ImageSearch: ImageSearchConfig{
			Endpoint: "https://en.wikipedia.org/w/api.php",
			Timeout:  "15s",
		},
		Export: ExportConfig{Directory: filepath.Join(home, "Documents")},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SLIDES_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SLIDES_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("SLIDES_DB_HOST"); v != "" {
		c.Storage.Host = v
	}
}

// Validate checks values that would otherwise fail late, at startup of the
// storage layer or the scheduler.
func (c *Config) Validate() error {
	if !contains(Drivers, c.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %q (valid: %v)", c.Storage.Driver, Drivers)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for sqlite")
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Host == "" {
		return fmt.Errorf("storage.host is required for %s", c.Storage.Driver)
	}
	if !contains(Locales, c.Dictation.Locale) {
		return fmt.Errorf("invalid dictation locale: %q (valid: %v)", c.Dictation.Locale, Locales)
	}
	if c.Autosave.Enabled {
		if _, err := cron.ParseStandard(c.Autosave.Schedule); err != nil {
			return fmt.Errorf("invalid autosave schedule %q: %w", c.Autosave.Schedule, err)
		}
	}
	if _, err := time.ParseDuration(c.ImageSearch.Timeout); err != nil {
		return fmt.Errorf("invalid image_search.timeout %q: %w", c.ImageSearch.Timeout, err)
	}
	return nil
}

// SearchTimeout returns the image search timeout, defaulting to 15s.
func (c *Config) SearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.ImageSearch.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
