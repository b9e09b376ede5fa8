package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config contains all runtime settings for the tracker service.
type Config struct {
	Port     string `koanf:"port"`
	BindAddr string `koanf:"bind_addr"`

	PublicAppURL string `koanf:"public_app_url"`

	DatabaseURL string `koanf:"database_url"`
	// ValkeyURL is carried for deployment parity; no core behavior
	// exercises the cache.
	ValkeyURL string `koanf:"valkey_url"`

	TelegramBotToken string `koanf:"telegram_bot_token"`
	TelegramAPIBase  string `koanf:"telegram_api_base_url"`
	DigestChatID     int64  `koanf:"daily_digest_chat_id"`

	MetricsNamespace string        `koanf:"metrics_namespace"`
	LogLevel         string        `koanf:"log_level"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load builds the configuration from defaults overlaid with environment
// variables. The env names match the original deployment (PORT,
// DATABASE_URL, TELEGRAM_BOT_TOKEN, DAILY_DIGEST_CHAT_ID, ...).
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"bind_addr":             ":3000",
		"telegram_api_base_url": "https://api.telegram.org",
		"metrics_namespace":     "contentdesk",
		"log_level":             "info",
		"shutdown_timeout":      "15s",
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	// Variables set but empty count as unset so they cannot clobber
	// defaults; the original deployment treated falsy env the same way.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return envKey(key), value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if port := strings.TrimSpace(cfg.Port); port != "" {
		cfg.BindAddr = ":" + port
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	return cfg, nil
}

// envKey admits only the variables this service understands; everything
// else in the environment is ignored.
func envKey(s string) string {
	switch s {
	case "PORT":
		return "port"
	case "APP_BIND_ADDR":
		return "bind_addr"
	case "PUBLIC_APP_URL":
		return "public_app_url"
	case "DATABASE_URL":
		return "database_url"
	case "VALKEY_URL":
		return "valkey_url"
	case "TELEGRAM_BOT_TOKEN":
		return "telegram_bot_token"
	case "TELEGRAM_API_BASE_URL":
		return "telegram_api_base_url"
	case "DAILY_DIGEST_CHAT_ID":
		return "daily_digest_chat_id"
	case "APP_METRICS_NAMESPACE":
		return "metrics_namespace"
	case "LOG_LEVEL":
		return "log_level"
	case "APP_SHUTDOWN_TIMEOUT":
		return "shutdown_timeout"
	default:
		return ""
	}
}
