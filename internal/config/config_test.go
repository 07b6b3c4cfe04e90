package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
discord_token: from-file
channels: ["111", "222"]
pipeline_mode: collect_all
language: ja
ban_period:
  others_window_days: 10
  self_window_days: 2
lookup:
  max_concurrent: 8
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("SELF_REPOST_GRACE_MINUTES", "15")
	t.Setenv("EXEMPT_ROLES", "mods, admins ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-file" {
		t.Fatalf("unexpected token %q", cfg.DiscordToken)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[1] != "222" {
		t.Fatalf("unexpected channels %v", cfg.Channels)
	}
	if len(cfg.ExemptRoles) != 2 || cfg.ExemptRoles[0] != "mods" || cfg.ExemptRoles[1] != "admins" {
		t.Fatalf("unexpected exempt roles %v", cfg.ExemptRoles)
	}
	if cfg.PipelineMode != "collect_all" || cfg.Language != "ja" {
		t.Fatalf("unexpected mode/language %q %q", cfg.PipelineMode, cfg.Language)
	}
	if cfg.OthersWindow() != 10*24*time.Hour || cfg.SelfWindow() != 48*time.Hour || cfg.SelfRepostGrace() != 15*time.Minute {
		t.Fatalf("unexpected ban period %+v", cfg.BanPeriod)
	}
	if cfg.Lookup.MaxConcurrent != 8 || cfg.Lookup.Burst != 5 {
		t.Fatalf("defaults should survive partial yaml: %+v", cfg.Lookup)
	}
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseDriver = "PGX"
	cfg.PipelineMode = "whatever"
	cfg.Language = "fr"
	cfg.BanPeriod.SelfWindowDays = -1
	normalize(&cfg)

	if cfg.DatabaseDriver != "postgres" || cfg.PipelineMode != "fail_fast" || cfg.Language != "en" {
		t.Fatalf("unexpected normalisation: %+v", cfg)
	}
	if cfg.BanPeriod.SelfWindowDays != 0 {
		t.Fatalf("negative windows should clamp to zero")
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
}

func TestBuildLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo.log")
	logger, err := BuildLogger(LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in file")
	}
}
