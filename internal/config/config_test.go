package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		StoreDriver:      "sqlite",
		SessionStore:     "memory",
		TelegramBotToken: "123:abc",
		AdminTelegramID:  42,
		BotEnabled:       true,
		BotMode:          "polling",
		BotIdleTimeout:   30 * time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.TelegramBotToken = "" }, "TELEGRAM_BOT_TOKEN"},
		{"missing admin", func(c *Config) { c.AdminTelegramID = 0 }, "ADMIN_TELEGRAM_ID"},
		{"postgres without url", func(c *Config) { c.StoreDriver = "postgres" }, "DATABASE_URL"},
		{"postgres with url", func(c *Config) {
			c.StoreDriver = "postgres"
			c.DatabaseURL = "postgres://localhost/anidao"
		}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"unknown session store", func(c *Config) { c.SessionStore = "file" }, "SESSION_STORE"},
		{"webhook without secret", func(c *Config) { c.BotMode = "webhook" }, "BOT_WEBHOOK"},
		{"webhook disabled bot", func(c *Config) {
			c.BotMode = "webhook"
			c.BotEnabled = false
		}, ""},
		{"zero idle timeout", func(c *Config) { c.BotIdleTimeout = 0 }, "BOT_IDLE_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_TELEGRAM_ID", "777")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AdminTelegramID != 777 {
		t.Errorf("expected admin id 777, got %d", cfg.AdminTelegramID)
	}
	if !cfg.Production() {
		t.Errorf("expected production mode")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.BotIdleTimeout != 30*time.Minute {
		t.Errorf("expected default idle timeout, got %v", cfg.BotIdleTimeout)
	}
	if cfg.VideoPlaceholderURL != DefaultVideoPlaceholderURL {
		t.Errorf("unexpected placeholder %q", cfg.VideoPlaceholderURL)
	}
	if cfg.BunnyEnabled() {
		t.Errorf("bunny should be disabled without credentials")
	}
}
