package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string         `yaml:"discord_token"`
	Database          DatabaseConfig `yaml:"database"`
	LogLevel          string         `yaml:"log_level"`
	Prefixes          []string       `yaml:"prefixes"`
	DefaultLogChannel string         `yaml:"default_log_channel"`
	LegacyDataDir     string         `yaml:"legacy_data_dir"`
	TopicsPath        string         `yaml:"topics_path"`
	RetentionDays     int            `yaml:"retention_days"`
	Health            HealthConfig   `yaml:"health"`
	Commands          CommandConfig  `yaml:"commands"`
	Notifications     NotifyConfig   `yaml:"notifications"`
	Jail              JailConfig     `yaml:"jail"`
	Reminder          ReminderConfig `yaml:"reminder"`
	Snipe             SnipeConfig    `yaml:"snipe"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type CommandConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`
	Burst           int `yaml:"burst"`
}

type NotifyConfig struct {
	DMEnabled   bool        `yaml:"dm_enabled"`
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
	Success int `yaml:"success"`
}

type JailConfig struct {
	RestoreOnStart bool `yaml:"restore_on_start"`
}

type ReminderConfig struct {
	MaxHours int `yaml:"max_hours"`
}

type SnipeConfig struct {
	PerChannel    int    `yaml:"per_channel"`
	DefaultPeriod string `yaml:"default_period"`
}

func DefaultConfig() Config {
	return Config{
		Database:      DatabaseConfig{Driver: "sqlite", DSN: "/data/warden.db"},
		LogLevel:      "info",
		Prefixes:      []string{"x"},
		LegacyDataDir: "",
		TopicsPath:    "topics.txt",
		RetentionDays: 90,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Commands:      CommandConfig{CooldownSeconds: 2, Burst: 3},
		Notifications: NotifyConfig{
			DMEnabled: true,
			EmbedColors: EmbedColors{
				Action:  0xE74C3C,
				Warning: 0xF1C40F,
				Error:   0xED4245,
				Success: 0x2ECC71,
			},
		},
		Jail:     JailConfig{RestoreOnStart: true},
		Reminder: ReminderConfig{MaxHours: 24},
		Snipe:    SnipeConfig{PerChannel: 500, DefaultPeriod: "2h"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	cfg.Database.Driver = normalizeDriver(cfg.Database.Driver)
	cfg.Prefixes = normalizePrefixes(cfg.Prefixes)
	if cfg.Reminder.MaxHours <= 0 {
		cfg.Reminder.MaxHours = 24
	}
	if cfg.Snipe.PerChannel <= 0 {
		cfg.Snipe.PerChannel = 500
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Prefixes = envList("PREFIXES", cfg.Prefixes)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.LegacyDataDir = envString("LEGACY_DATA_DIR", cfg.LegacyDataDir)
	cfg.TopicsPath = envString("TOPICS_PATH", cfg.TopicsPath)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Commands.CooldownSeconds = envInt("COMMAND_COOLDOWN_SECONDS", cfg.Commands.CooldownSeconds)
	cfg.Commands.Burst = envInt("COMMAND_BURST", cfg.Commands.Burst)
	cfg.Notifications.DMEnabled = envBool("DM_ENABLED", cfg.Notifications.DMEnabled)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
	cfg.Notifications.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.Notifications.EmbedColors.Success)
	cfg.Jail.RestoreOnStart = envBool("JAIL_RESTORE_ON_START", cfg.Jail.RestoreOnStart)
	cfg.Reminder.MaxHours = envInt("REMINDER_MAX_HOURS", cfg.Reminder.MaxHours)
	cfg.Snipe.PerChannel = envInt("SNIPE_PER_CHANNEL", cfg.Snipe.PerChannel)
	cfg.Snipe.DefaultPeriod = envString("SNIPE_DEFAULT_PERIOD", cfg.Snipe.DefaultPeriod)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return "sqlite"
	}
}

func normalizePrefixes(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return []string{"x"}
	}
	return out
}
