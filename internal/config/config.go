package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken         string          `yaml:"discord_token"`
	DatabaseDriver       string          `yaml:"database_driver"`
	DatabasePath         string          `yaml:"database_path"`
	Log                  LogConfig       `yaml:"log"`
	Language             string          `yaml:"language"`
	Timezone             string          `yaml:"timezone"`
	AlertEmoji           string          `yaml:"alert_emoji"`
	Channels             []string        `yaml:"channels"`
	ExemptRoles          []string        `yaml:"exempt_roles"`
	WarningDelaySeconds  int             `yaml:"warning_delay_seconds"`
	MinDescriptionLength int             `yaml:"min_description_length"`
	PipelineMode         string          `yaml:"pipeline_mode"`
	BanPeriod            BanPeriodConfig `yaml:"ban_period"`
	Lookup               LookupConfig    `yaml:"lookup"`
	Redis                RedisConfig     `yaml:"redis"`
	Health               HealthConfig    `yaml:"health"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type BanPeriodConfig struct {
	OthersWindowDays       int `yaml:"others_window_days"`
	SelfWindowDays         int `yaml:"self_window_days"`
	SelfRepostGraceMinutes int `yaml:"self_repost_grace_minutes"`
}

type LookupConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
	CacheTTLMinutes   int     `yaml:"cache_ttl_minutes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseDriver:       "sqlite",
		DatabasePath:         "/data/promo-sentinel.db",
		Log:                  LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 28},
		Language:             "en",
		Timezone:             "UTC",
		AlertEmoji:           "⚠️",
		WarningDelaySeconds:  10,
		MinDescriptionLength: 20,
		PipelineMode:         "fail_fast",
		BanPeriod: BanPeriodConfig{
			OthersWindowDays:       7,
			SelfWindowDays:         3,
			SelfRepostGraceMinutes: 30,
		},
		Lookup: LookupConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			MaxConcurrent:     4,
			CacheTTLMinutes:   60,
		},
		Health: HealthConfig{Enabled: false, Addr: ":8080"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

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
	normalize(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseDriver = envString("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envString("LOG_FILE", cfg.Log.File)
	cfg.Language = envString("LANGUAGE", cfg.Language)
	cfg.Timezone = envString("TIMEZONE", cfg.Timezone)
	cfg.AlertEmoji = envString("ALERT_EMOJI", cfg.AlertEmoji)
	cfg.Channels = envList("CHANNELS", cfg.Channels)
	cfg.ExemptRoles = envList("EXEMPT_ROLES", cfg.ExemptRoles)
	cfg.WarningDelaySeconds = envInt("WARNING_DELAY_SECONDS", cfg.WarningDelaySeconds)
	cfg.MinDescriptionLength = envInt("MIN_DESCRIPTION_LENGTH", cfg.MinDescriptionLength)
	cfg.PipelineMode = envString("PIPELINE_MODE", cfg.PipelineMode)
	cfg.BanPeriod.OthersWindowDays = envInt("OTHERS_WINDOW_DAYS", cfg.BanPeriod.OthersWindowDays)
	cfg.BanPeriod.SelfWindowDays = envInt("SELF_WINDOW_DAYS", cfg.BanPeriod.SelfWindowDays)
	cfg.BanPeriod.SelfRepostGraceMinutes = envInt("SELF_REPOST_GRACE_MINUTES", cfg.BanPeriod.SelfRepostGraceMinutes)
	cfg.Lookup.RequestsPerSecond = envFloat("LOOKUP_RPS", cfg.Lookup.RequestsPerSecond)
	cfg.Lookup.Burst = envInt("LOOKUP_BURST", cfg.Lookup.Burst)
	cfg.Lookup.MaxConcurrent = envInt("LOOKUP_MAX_CONCURRENT", cfg.Lookup.MaxConcurrent)
	cfg.Lookup.CacheTTLMinutes = envInt("LOOKUP_CACHE_TTL_MINUTES", cfg.Lookup.CacheTTLMinutes)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
}

func normalize(cfg *Config) {
	cfg.DatabaseDriver = normalizeDriver(cfg.DatabaseDriver)
	cfg.PipelineMode = normalizePipelineMode(cfg.PipelineMode)
	cfg.Language = normalizeLanguage(cfg.Language)
	if cfg.BanPeriod.OthersWindowDays < 0 {
		cfg.BanPeriod.OthersWindowDays = 0
	}
	if cfg.BanPeriod.SelfWindowDays < 0 {
		cfg.BanPeriod.SelfWindowDays = 0
	}
	if cfg.BanPeriod.SelfRepostGraceMinutes < 0 {
		cfg.BanPeriod.SelfRepostGraceMinutes = 0
	}
	if cfg.WarningDelaySeconds < 0 {
		cfg.WarningDelaySeconds = 0
	}
}

func (c Config) OthersWindow() time.Duration {
	return time.Duration(c.BanPeriod.OthersWindowDays) * 24 * time.Hour
}

func (c Config) SelfWindow() time.Duration {
	return time.Duration(c.BanPeriod.SelfWindowDays) * 24 * time.Hour
}

func (c Config) SelfRepostGrace() time.Duration {
	return time.Duration(c.BanPeriod.SelfRepostGraceMinutes) * time.Minute
}

func (c Config) WarningDelay() time.Duration {
	return time.Duration(c.WarningDelaySeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Lookup.CacheTTLMinutes) * time.Minute
}

// Location falls back to UTC when the configured zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func BuildLogger(logCfg LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(logCfg.Level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if logCfg.File == "" {
		return cfg.Build()
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logCfg.File,
		MaxSize:    logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAgeDays,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotating, cfg.Level)
	return cfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
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

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return "sqlite"
	}
}

func normalizePipelineMode(value string) string {
	switch strings.ToLower(value) {
	case "collect_all":
		return "collect_all"
	default:
		return "fail_fast"
	}
}

func normalizeLanguage(value string) string {
	switch strings.ToLower(value) {
	case "ja", "jp", "japanese":
		return "ja"
	default:
		return "en"
	}
}
