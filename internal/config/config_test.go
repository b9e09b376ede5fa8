package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":3000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":3000")
	}
	if cfg.TelegramAPIBase != "https://api.telegram.org" {
		t.Fatalf("TelegramAPIBase = %q, want default", cfg.TelegramAPIBase)
	}
	if cfg.MetricsNamespace != "contentdesk" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "contentdesk")
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
	if cfg.DigestChatID != 0 {
		t.Fatalf("DigestChatID = %d, want unset", cfg.DigestChatID)
	}
}

func TestLoadPortOverridesBindAddr(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
}

func TestLoadReadsDeploymentEnv(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/contentdesk")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DAILY_DIGEST_CHAT_ID", "-100123456")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/contentdesk" {
		t.Fatalf("DatabaseURL = %q, want explicit value", cfg.DatabaseURL)
	}
	if cfg.TelegramBotToken != "123:abc" {
		t.Fatalf("TelegramBotToken = %q, want explicit value", cfg.TelegramBotToken)
	}
	if cfg.DigestChatID != -100123456 {
		t.Fatalf("DigestChatID = %d, want -100123456", cfg.DigestChatID)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"APP_BIND_ADDR",
		"PUBLIC_APP_URL",
		"DATABASE_URL",
		"VALKEY_URL",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_API_BASE_URL",
		"DAILY_DIGEST_CHAT_ID",
		"APP_METRICS_NAMESPACE",
		"LOG_LEVEL",
		"APP_SHUTDOWN_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
