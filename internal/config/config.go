package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"bot-dashboard/internal/domain"
)

type Config struct {
	BackendURL             string
	BackendTimeoutSecs     int
	BackendRateLimitPerSec int

	Symbols []string

	TickerPollSecs   int
	AnalysisPollSecs int
	StatusPollSecs   int
	ConfigPollSecs   int
	RetryDelayMs     int

	DefaultConfigPath   string
	RecommendationField string

	DatabaseURL       string
	RedisURL          string
	StateCacheTTLSecs int

	TelegramBotToken    string
	TelegramAlertChatID int64

	HTTPPort   string
	LogLevel   string
	TUILogPath string

	// Warnings collects problems found while loading. They are logged once
	// the logger exists.
	Warnings []string
}

func Load() *Config {
	cfg := &Config{
		BackendURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/"),
		DefaultConfigPath: strings.TrimSpace(os.Getenv("DEFAULT_CONFIG_PATH")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8000/api"
	}
	if cfg.DatabaseURL == "" {
		cfg.warn("DATABASE_URL not set, config history disabled")
	}
	if cfg.RedisURL == "" {
		cfg.warn("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		cfg.warn("TELEGRAM_BOT_TOKEN not set, alerts disabled")
	}

	cfg.Symbols = domain.ParseSymbols(os.Getenv("DASHBOARD_SYMBOLS"))
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), domain.DefaultSymbols...)
	}

	cfg.BackendTimeoutSecs = cfg.positiveInt("BACKEND_TIMEOUT_SECS", 10)
	cfg.BackendRateLimitPerSec = cfg.positiveInt("BACKEND_RATE_LIMIT_PER_SEC", 20)
	cfg.TickerPollSecs = cfg.positiveInt("TICKER_POLL_SECS", 5)
	cfg.AnalysisPollSecs = cfg.positiveInt("ANALYSIS_POLL_SECS", 60)
	cfg.StatusPollSecs = cfg.positiveInt("STATUS_POLL_SECS", 10)
	cfg.ConfigPollSecs = cfg.positiveInt("CONFIG_POLL_SECS", 30)
	cfg.RetryDelayMs = cfg.positiveInt("RETRY_DELAY_MS", 1000)
	cfg.StateCacheTTLSecs = cfg.positiveInt("STATE_CACHE_TTL_SECS", 120)

	cfg.RecommendationField = strings.TrimSpace(os.Getenv("RECOMMENDATION_FIELD"))
	if cfg.RecommendationField == "" {
		cfg.RecommendationField = "activeStrategy"
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ALERT_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramAlertChatID = n
		} else {
			cfg.warn("invalid TELEGRAM_ALERT_CHAT_ID=" + v + ", alerts will not be pushed")
		}
	}

	cfg.HTTPPort = strings.TrimSpace(os.Getenv("HTTP_PORT"))
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	cfg.TUILogPath = strings.TrimSpace(os.Getenv("TUI_LOG_FILE"))
	if cfg.TUILogPath == "" {
		cfg.TUILogPath = "dashboard.log"
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

// PollInterval is the polling interval configured for a resource.
func (c *Config) PollInterval(r domain.Resource) time.Duration {
	secs := c.StatusPollSecs
	switch r {
	case domain.ResourceTicker:
		secs = c.TickerPollSecs
	case domain.ResourceAnalysis:
		secs = c.AnalysisPollSecs
	case domain.ResourceConfig:
		secs = c.ConfigPollSecs
	}
	return time.Duration(secs) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSecs) * time.Second
}

func (c *Config) StateCacheTTL() time.Duration {
	return time.Duration(c.StateCacheTTLSecs) * time.Second
}

func (c *Config) positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.warn("invalid " + key + "=" + v + ", using default")
		return def
	}
	return n
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}
