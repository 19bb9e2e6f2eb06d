// Package config provides YAML-based configuration loading for Huddle.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Huddle configuration, loaded from huddle.yaml.
type Config struct {
	Env        string           `yaml:"env"` // "development" (default) or "production"
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Backup     BackupConfig     `yaml:"backup"`
	LocalStore LocalStoreConfig `yaml:"localstore"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// DatabaseConfig holds connection settings for the durable store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "mysql" or "sqlite"
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"` // sqlite database file
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// BackupConfig holds snapshot settings for the backup engine.
type BackupConfig struct {
	Dir                    string `yaml:"dir"`
	Retain                 int    `yaml:"retain"`
	Schedule               string `yaml:"schedule"` // 5-field cron expression; empty disables the scheduler
	IncrementalWindowHours int    `yaml:"incremental_window_hours"`
}

// LocalStoreConfig holds settings for the client-local key-value store.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig holds optional ops-notification settings.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack notification adapter.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig configures the Discord notification adapter.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "huddle"
		}
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "huddle.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
	if c.Backup.Retain == 0 {
		c.Backup.Retain = 30
	}
	if c.Backup.IncrementalWindowHours == 0 {
		c.Backup.IncrementalWindowHours = 24
	}
	if c.LocalStore.Path == "" {
		c.LocalStore.Path = ".huddle/localstore"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Env != "development" && c.Env != "production" {
		errs = append(errs, fmt.Sprintf("env must be development or production, got %q", c.Env))
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Backup.Retain < 1 {
		errs = append(errs, "backup.retain must be at least 1")
	}
	if c.Backup.IncrementalWindowHours < 1 {
		errs = append(errs, "backup.incremental_window_hours must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
