package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "labelrelay.yaml"

// Config is treated as a value: updates build a new *Config with Clone and
// replace the old one instead of mutating it.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Printer   PrinterConfig   `yaml:"printer"`
	Remote    RemoteConfig    `yaml:"remote"`
	Templates TemplatesConfig `yaml:"templates"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type PrinterConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	Timeout             time.Duration `yaml:"timeout"`
	Pacing              time.Duration `yaml:"pacing"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

type RemoteConfig struct {
	URL           string        `yaml:"url"`
	APIPath       string        `yaml:"api_path"`
	CompanyID     int           `yaml:"company_id"`
	CompanyName   string        `yaml:"company_name"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	ReportTimeout time.Duration `yaml:"report_timeout"`
	// AutoRefresh is the UI job-list refresh period in seconds.
	AutoRefresh int `yaml:"auto_refresh"`
}

type TemplatesConfig struct {
	Path    string `yaml:"path"`
	Default string `yaml:"default"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ArchivePath string `yaml:"archive_path"`
	ArchiveDays int    `yaml:"archive_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			ReadTimeout: 30 * time.Second,
		},
		Printer: PrinterConfig{
			Port:                9100,
			Timeout:             3 * time.Second,
			Pacing:              100 * time.Millisecond,
			HealthCheckInterval: 30 * time.Second,
		},
		Remote: RemoteConfig{
			APIPath:       "/api/label_print",
			FetchTimeout:  10 * time.Second,
			ReportTimeout: 8 * time.Second,
			AutoRefresh:   60,
		},
		Templates: TemplatesConfig{
			Path:    "templates.yaml",
			Default: "standard",
		},
		Database: DatabaseConfig{
			Path:        "./data/labelrelay.db",
			ArchivePath: "./data/archives",
			ArchiveDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Default() *Config {
	return defaults()
}

// Load reads the YAML file at configPath over the defaults. A missing file
// yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the config atomically through a temp file in the same
// directory.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(configPath)
	tmp, err := os.CreateTemp(dir, ".labelrelay-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// ApplyEnv overrides fields from LABELRELAY_* environment variables.
// Unparseable numbers are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LABELRELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("LABELRELAY_PRINTER_HOST"); v != "" {
		c.Printer.Host = v
	}

	if v := os.Getenv("LABELRELAY_PRINTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Printer.Port = port
		}
	}

	if v := os.Getenv("LABELRELAY_ODOO_URL"); v != "" {
		c.Remote.URL = v
	}

	if v := os.Getenv("LABELRELAY_COMPANY_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Remote.CompanyID = id
		}
	}

	if v := os.Getenv("LABELRELAY_TEMPLATES"); v != "" {
		c.Templates.Path = v
	}

	if v := os.Getenv("LABELRELAY_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("LABELRELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("LABELRELAY_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Printer.Port < 1 || c.Printer.Port > 65535 {
		return fmt.Errorf("printer port must be between 1 and 65535, got %d", c.Printer.Port)
	}

	if c.Printer.Timeout <= 0 {
		return fmt.Errorf("printer timeout must be positive")
	}

	if c.Printer.Pacing < 0 {
		return fmt.Errorf("printer pacing must be non-negative")
	}

	if c.Printer.HealthCheckInterval < 0 {
		return fmt.Errorf("health check interval must be non-negative")
	}

	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote url must be an http(s) URL, got %q", c.Remote.URL)
		}
	}

	if c.Remote.FetchTimeout < 0 || c.Remote.ReportTimeout < 0 {
		return fmt.Errorf("remote timeouts must be non-negative")
	}

	if c.Remote.AutoRefresh < 0 {
		return fmt.Errorf("auto refresh must be non-negative")
	}

	if c.Templates.Path == "" {
		return fmt.Errorf("templates path is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.ArchiveDays < 0 {
		return fmt.Errorf("archive days must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
