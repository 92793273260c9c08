package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultVideoPlaceholderURL is used for episodes when no video host is configured
const DefaultVideoPlaceholderURL = "https://iframe.mediadelivery.net/play/412175/fa9e4829-e5d9-47d5-a4d9-77e945fa08d5"

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort         string
	Environment        string
	CORSAllowedOrigins []string
	LoginRateLimit     int // login attempts per minute per client IP

	// Storage
	StoreDriver  string // sqlite, postgres, bolt or memory
	DatabaseURL  string
	DatabaseFile string // $CONFIG_DIR/anidao.db
	BoltFile     string // $CONFIG_DIR/anidao.bolt

	// Sessions
	SessionStore  string // memory or redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Telegram
	TelegramBotToken string
	AdminTelegramID  int64
	BotEnabled       bool
	BotMode          string // polling or webhook
	BotWebhookURL    string
	BotWebhookSecret string
	BotIdleTimeout   time.Duration

	// Video
	VideoPlaceholderURL string
	BunnyAPIKey         string
	BunnyLibraryID      string

	// Logging
	LogLevel string
}

// Production reports whether the service runs in production mode
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// BunnyEnabled reports whether uploads to Bunny Stream are configured
func (c *Config) BunnyEnabled() bool {
	return c.BunnyAPIKey != "" && c.BunnyLibraryID != ""
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("LOGIN_RATE_LIMIT", 10)
	viper.SetDefault("STORE_DRIVER", "sqlite")
	viper.SetDefault("SESSION_STORE", "memory")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("BOT_ENABLED", true)
	viper.SetDefault("BOT_MODE", "polling")
	viper.SetDefault("BOT_IDLE_TIMEOUT", "30m")
	viper.SetDefault("VIDEO_PLACEHOLDER_URL", DefaultVideoPlaceholderURL)
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "anidao")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Server
		ServerPort:         viper.GetString("SERVER_PORT"),
		Environment:        strings.ToLower(viper.GetString("ENVIRONMENT")),
		CORSAllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		LoginRateLimit:     viper.GetInt("LOGIN_RATE_LIMIT"),

		// Storage
		StoreDriver:  strings.ToLower(viper.GetString("STORE_DRIVER")),
		DatabaseURL:  viper.GetString("DATABASE_URL"),
		DatabaseFile: filepath.Join(configDir, "anidao.db"),
		BoltFile:     filepath.Join(configDir, "anidao.bolt"),

		// Sessions
		SessionStore:  strings.ToLower(viper.GetString("SESSION_STORE")),
		RedisAddr:     viper.GetString("REDIS_ADDR"),
		RedisPassword: viper.GetString("REDIS_PASSWORD"),
		RedisDB:       viper.GetInt("REDIS_DB"),

		// Telegram
		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		AdminTelegramID:  viper.GetInt64("ADMIN_TELEGRAM_ID"),
		BotEnabled:       viper.GetBool("BOT_ENABLED"),
		BotMode:          strings.ToLower(viper.GetString("BOT_MODE")),
		BotWebhookURL:    viper.GetString("BOT_WEBHOOK_URL"),
		BotWebhookSecret: viper.GetString("BOT_WEBHOOK_SECRET"),
		BotIdleTimeout:   viper.GetDuration("BOT_IDLE_TIMEOUT"),

		// Video
		VideoPlaceholderURL: viper.GetString("VIDEO_PLACEHOLDER_URL"),
		BunnyAPIKey:         viper.GetString("BUNNY_API_KEY"),
		BunnyLibraryID:      viper.GetString("BUNNY_LIBRARY_ID"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required fields and enumerated values
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.AdminTelegramID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is required")
	}

	switch c.StoreDriver {
	case "sqlite", "bolt", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}

	switch c.BotMode {
	case "polling":
	case "webhook":
		if c.BotEnabled && (c.BotWebhookURL == "" || c.BotWebhookSecret == "") {
			return fmt.Errorf("BOT_WEBHOOK_URL and BOT_WEBHOOK_SECRET are required when BOT_MODE=webhook")
		}
	default:
		return fmt.Errorf("unsupported BOT_MODE %q", c.BotMode)
	}

	if c.BotIdleTimeout <= 0 {
		return fmt.Errorf("BOT_IDLE_TIMEOUT must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
