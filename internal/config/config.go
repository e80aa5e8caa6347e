package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken    string
	GeminiAPIKey     string
	GeminiAPIKeyFile string

	WebAddr     string
	MetricsAddr string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	ModelFlash    string
	ModelPro      string
	MaxAttempts   int
	BackoffBase   time.Duration
	RatePerMinute int

	HistoryCapacity int
	UndoLimit       int
	SessionTTL      time.Duration
	CredentialGrace time.Duration

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
}

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		WebAddr:            strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		MetricsAddr:        strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		ModelFlash:         strings.TrimSpace(getEnv("GEMINI_MODEL_FLASH", "gemini-2.5-flash-image")),
		ModelPro:           strings.TrimSpace(getEnv("GEMINI_MODEL_PRO", "gemini-3-pro-image-preview")),
		MaxAttempts:        getEnvInt("GEMINI_MAX_ATTEMPTS", 3),
		BackoffBase:        time.Duration(getEnvInt("GEMINI_BACKOFF_BASE_MS", 2000)) * time.Millisecond,
		RatePerMinute:      getEnvInt("GEMINI_RATE_PER_MINUTE", 20),
		HistoryCapacity:    getEnvInt("HISTORY_CAPACITY", 20),
		UndoLimit:          getEnvInt("UNDO_LIMIT", 50),
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		CredentialGrace:    time.Duration(getEnvInt("CREDENTIAL_GRACE_SECONDS", 0)) * time.Second,
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiAPIKeyFile = strings.TrimSpace(os.Getenv("GEMINI_API_KEY_FILE"))

	if cfg.GeminiAPIKey == "" && cfg.GeminiAPIKeyFile == "" {
		return Config{}, errors.New("GEMINI_API_KEY or GEMINI_API_KEY_FILE is required")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.HistoryCapacity < 1 {
		cfg.HistoryCapacity = 20
	}
	if cfg.UndoLimit < 1 {
		cfg.UndoLimit = 50
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.CredentialGrace < 0 {
		cfg.CredentialGrace = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

// RequireTelegram is the extra check the bot binary makes.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
