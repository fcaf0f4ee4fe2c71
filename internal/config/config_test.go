package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("discord_token: file-token\nprefixes: [\"X\", \"w!\", \"x\"]\ndatabase:\n  driver: pgx\n  dsn: postgres://localhost/warden\nsnipe:\n  per_channel: 0\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DEFAULT_LOG_CHANNEL", "c1")
	t.Setenv("REMINDER_MAX_HOURS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "file-token" {
		t.Fatalf("expected file-token, got %q", cfg.DiscordToken)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if len(cfg.Prefixes) != 2 || cfg.Prefixes[0] != "x" || cfg.Prefixes[1] != "w!" {
		t.Fatalf("unexpected prefixes: %v", cfg.Prefixes)
	}
	if cfg.DefaultLogChannel != "c1" {
		t.Fatalf("expected c1, got %q", cfg.DefaultLogChannel)
	}
	if cfg.Reminder.MaxHours != 12 {
		t.Fatalf("expected 12, got %d", cfg.Reminder.MaxHours)
	}
	if cfg.Snipe.PerChannel != 500 {
		t.Fatalf("expected default 500, got %d", cfg.Snipe.PerChannel)
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("PREFIXES", " x , ,! ")
	got := envList("PREFIXES", []string{"y"})
	if len(got) != 2 || got[0] != "x" || got[1] != "!" {
		t.Fatalf("unexpected list: %v", got)
	}
}
