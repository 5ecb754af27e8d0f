package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: sponsormatch_prod
  user: app
  password: secret

server:
  port: 9090

roles:
  a_side: brand
  b_side: organizer

channels:
  - kind: interest
  - kind: connection

notify:
  queue_size: 64
  workers: 4
  command: "notify-send 'Sponsormatch' '{{.Title}}'"
  slack:
    bot_token: xoxb-123
    channel_id: C01
  discord:
    bot_token: abc
    channel_id: "998877"

sweep:
  enabled: false
  schedule: "0 * * * *"
`

const sqliteYAML = `
database:
  driver: sqlite
  path: /tmp/sponsormatch.db
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Name != "sponsormatch_prod" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
	if cfg.Database.User != "app" || cfg.Database.Password != "secret" {
		t.Errorf("Database credentials = %q/%q", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[1].Kind != "connection" {
		t.Errorf("Channels = %+v", cfg.Channels)
	}
	if cfg.Notify.QueueSize != 64 || cfg.Notify.Workers != 4 {
		t.Errorf("Notify queue/workers = %d/%d", cfg.Notify.QueueSize, cfg.Notify.Workers)
	}
	if cfg.Notify.Slack.ChannelID != "C01" {
		t.Errorf("Notify.Slack.ChannelID = %q", cfg.Notify.Slack.ChannelID)
	}
	if cfg.Notify.Discord.ChannelID != "998877" {
		t.Errorf("Notify.Discord.ChannelID = %q", cfg.Notify.Discord.ChannelID)
	}
	if cfg.Sweep.IsEnabled() {
		t.Error("Sweep.IsEnabled() = true, want false")
	}
	if cfg.Sweep.Schedule != "0 * * * *" {
		t.Errorf("Sweep.Schedule = %q", cfg.Sweep.Schedule)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database host/port = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "root" || cfg.Database.Name != "sponsormatch" {
		t.Errorf("Database user/name = %q/%q", cfg.Database.User, cfg.Database.Name)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Roles.ASide != "brand" || cfg.Roles.BSide != "organizer" {
		t.Errorf("Roles = %+v", cfg.Roles)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0].Kind != "interest" {
		t.Errorf("Channels = %+v", cfg.Channels)
	}
	if cfg.Notify.QueueSize != 256 || cfg.Notify.Workers != 2 {
		t.Errorf("Notify queue/workers = %d/%d", cfg.Notify.QueueSize, cfg.Notify.Workers)
	}
	if !cfg.Sweep.IsEnabled() {
		t.Error("Sweep.IsEnabled() = false, want true")
	}
	if cfg.Sweep.Schedule != DefaultSweepSchedule {
		t.Errorf("Sweep.Schedule = %q", cfg.Sweep.Schedule)
	}
}

func TestParse_SQLite(t *testing.T) {
	cfg, err := Parse([]byte(sqliteYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "/tmp/sponsormatch.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Database.Host != "" {
		t.Errorf("Database.Host = %q, want empty for sqlite", cfg.Database.Host)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown driver", "database: {driver: postgres}", `database.driver "postgres" is not supported`},
		{"sqlite without path", "database: {driver: sqlite}", "database.path is required for sqlite"},
		{"same roles", "roles: {a_side: brand, b_side: brand}", "roles.a_side and roles.b_side must differ"},
		{"empty kind", "channels: [{kind: ''}]", "channels[0].kind is required"},
		{"duplicate kind", "channels: [{kind: interest}, {kind: interest}]", `channels[1].kind "interest" is duplicated`},
		{"slack without channel", "notify: {slack: {bot_token: x}}", "notify.slack.channel_id is required"},
		{"discord without channel", "notify: {discord: {bot_token: x}}", "notify.discord.channel_id is required"},
		{"bad schedule", "sweep: {schedule: 'every tuesday'}", "sweep.schedule"},
		{"negative workers", "notify: {workers: -1}", "notify.workers must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.HasPrefix(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want config: parse: prefix", err.Error())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sponsormatch.yaml")
	if err := os.WriteFile(path, []byte(sqliteYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}
