// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/threadrelay/internal/store"
)

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCHealthAddr string
	LogLevel       slog.Level
	DedupeTTL      time.Duration
	Telegram       TelegramConfig
	OpenAI         OpenAIConfig
	Poll           PollConfig
	Store          StoreConfig
	Transcript     TranscriptConfig
}

// TranscriptConfig controls per-chat NDJSON transcripts.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TelegramConfig controls the bot connection.
type TelegramConfig struct {
	Token         string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	Debug         bool
}

// OpenAIConfig identifies the assistant service and assistant.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
}

// PollConfig bounds run status polling.
type PollConfig struct {
	Attempts int
	Interval time.Duration
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend        string
	DaprURL        string
	DaprAPIToken   string
	DaprStateStore string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	DBPath         string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		DedupeTTL:      getEnvDuration("DEDUPE_TTL", 10*time.Minute),
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			Mode:          strings.ToLower(getEnv("TELEGRAM_MODE", ModePolling)),
			WebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			Debug:         getEnvBool("TELEGRAM_DEBUG", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			AssistantID: getEnv("OPENAI_ASSISTANT_ID", ""),
		},
		Poll: PollConfig{
			Attempts: getEnvInt("RUN_POLL_ATTEMPTS", 5),
			Interval: getEnvDuration("RUN_POLL_INTERVAL", 2*time.Second),
		},
		Store: loadStore(),
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadStore reads only the session store settings. The operator CLI uses it
// so inspecting a binding does not require bot or assistant credentials.
func LoadStore() (StoreConfig, error) {
	cfg := loadStore()
	if err := cfg.Validate(); err != nil {
		return StoreConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadStore() StoreConfig {
	return StoreConfig{
		Backend:        strings.ToLower(getEnv("SESSION_STORE", store.BackendDapr)),
		DaprURL:        getEnv("DAPR_URL", ""),
		DaprAPIToken:   getEnv("DAPR_API_TOKEN", ""),
		DaprStateStore: getEnv("DAPR_STATE_STORE", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", store.DefaultRedisKeyPrefix),
		DBPath:         getEnv("DB_PATH", "./data/threadrelay.db"),
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAI.AssistantID == "" {
		return fmt.Errorf("OPENAI_ASSISTANT_ID is required")
	}
	if c.Poll.Attempts <= 0 {
		return fmt.Errorf("RUN_POLL_ATTEMPTS must be > 0")
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("RUN_POLL_INTERVAL cannot be negative")
	}
	if c.DedupeTTL <= 0 {
		return fmt.Errorf("DEDUPE_TTL must be > 0")
	}
	if c.Transcript.Enabled {
		if c.Transcript.Dir == "" {
			return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
		}
		if c.Transcript.QueueSize <= 0 {
			return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return c.Store.Validate()
}

// Validate checks the settings of the selected store backend.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case store.BackendDapr:
		if s.DaprURL == "" {
			return fmt.Errorf("DAPR_URL is required for the dapr session store")
		}
		if s.DaprStateStore == "" {
			return fmt.Errorf("DAPR_STATE_STORE is required for the dapr session store")
		}
	case store.BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	case store.BackendSQLite:
		if s.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of dapr, redis, sqlite, got %q", s.Backend)
	}
	return nil
}

// Options converts the settings into store options.
func (s StoreConfig) Options() store.Options {
	return store.Options{
		Backend: s.Backend,
		Dapr: store.DaprConfig{
			BaseURL:  s.DaprURL,
			APIToken: s.DaprAPIToken,
			Store:    s.DaprStateStore,
		},
		Redis: store.RedisConfig{
			Addr:      s.RedisAddr,
			Password:  s.RedisPassword,
			DB:        s.RedisDB,
			KeyPrefix: s.RedisKeyPrefix,
		},
		DBPath: s.DBPath,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
