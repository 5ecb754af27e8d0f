// Package config provides YAML-based configuration loading for Sponsormatch.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Sponsormatch configuration, loaded from sponsormatch.yaml.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Server   ServerConfig    `yaml:"server"`
	Roles    RolesConfig     `yaml:"roles"`
	Channels []ChannelConfig `yaml:"channels"`
	Notify   NotifyConfig    `yaml:"notify"`
	Sweep    SweepConfig     `yaml:"sweep"`
}

// DatabaseConfig holds connection settings. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RolesConfig names the two mutually exclusive party kinds.
type RolesConfig struct {
	ASide string `yaml:"a_side"`
	BSide string `yaml:"b_side"`
}

// ChannelConfig is one reconciliation channel (e.g. "interest", "connection").
// Both channels reconcile the same A-side/B-side role pair.
type ChannelConfig struct {
	Kind string `yaml:"kind"`
}

// NotifyConfig controls notification delivery. Empty sink sections disable
// that sink.
type NotifyConfig struct {
	QueueSize int           `yaml:"queue_size"`
	Workers   int           `yaml:"workers"`
	Command   string        `yaml:"command"`
	Slack     SlackConfig   `yaml:"slack"`
	Discord   DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack sink credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord sink credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SweepConfig schedules the reconciliation repair sweep.
type SweepConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// IsEnabled reports whether the sweep should run. Defaults to true.
func (s SweepConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DefaultSweepSchedule runs the repair sweep every ten minutes.
const DefaultSweepSchedule = "*/10 * * * *"

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
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "sponsormatch"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Roles.ASide == "" {
		c.Roles.ASide = "brand"
	}
	if c.Roles.BSide == "" {
		c.Roles.BSide = "organizer"
	}
	if len(c.Channels) == 0 {
		c.Channels = []ChannelConfig{{Kind: "interest"}, {Kind: "connection"}}
	}
	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = 256
	}
	if c.Notify.Workers == 0 {
		c.Notify.Workers = 2
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = DefaultSweepSchedule
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql":
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (mysql, sqlite)", c.Database.Driver))
	}
	if c.Roles.ASide == c.Roles.BSide {
		errs = append(errs, "roles.a_side and roles.b_side must differ")
	}
	seen := make(map[string]bool)
	for i, ch := range c.Channels {
		if ch.Kind == "" {
			errs = append(errs, fmt.Sprintf("channels[%d].kind is required", i))
			continue
		}
		if seen[ch.Kind] {
			errs = append(errs, fmt.Sprintf("channels[%d].kind %q is duplicated", i, ch.Kind))
		}
		seen[ch.Kind] = true
	}
	if c.Notify.QueueSize < 0 {
		errs = append(errs, "notify.queue_size must not be negative")
	}
	if c.Notify.Workers < 0 {
		errs = append(errs, "notify.workers must not be negative")
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required with a bot token")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a bot token")
	}
	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("sweep.schedule %q: %v", c.Sweep.Schedule, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
