package config

import (
	"time"
)

// Config holds runtime configuration for the IT-Помощь bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Dialog    DialogConfig    `mapstructure:"dialog"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	WebhookListen string        `mapstructure:"webhook_listen"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL backend of the record store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite3"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig picks where dialog state lives.
type StorageConfig struct {
	StateBackend string        `mapstructure:"state_backend" validate:"oneof=sql redis"`
	StateTTL     time.Duration `mapstructure:"state_ttl"`
}

// RedisConfig configures the shared Redis connection.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// DialogConfig tunes the conversation.
type DialogConfig struct {
	MinTaskLength    int           `mapstructure:"min_task_length" validate:"min=1"`
	MaxActiveOrders  int           `mapstructure:"max_active_orders" validate:"min=1"`
	HistoryLimit     int           `mapstructure:"history_limit" validate:"min=1"`
	MaxPhoneAttempts int           `mapstructure:"max_phone_attempts" validate:"min=0"`
	SummaryLength    int           `mapstructure:"summary_length" validate:"min=10"`
	DefaultLocale    string        `mapstructure:"default_locale" validate:"oneof=ru en"`
	Timezone         string        `mapstructure:"timezone"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
}

// CleanupConfig schedules stale state pruning.
type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// NotifyConfig selects the operator notification channel.
type NotifyConfig struct {
	Channel     string        `mapstructure:"channel" validate:"oneof=webhook telegram log"`
	WebhookURL  string        `mapstructure:"webhook_url" validate:"required_if=Channel webhook"`
	AdminChatID int64         `mapstructure:"admin_chat_id" validate:"required_if=Channel telegram"`
	Source      string        `mapstructure:"source"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// RateLimitConfig configures per-user flood protection.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// JobsConfig configures the asynq worker.
type JobsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	MaxRetry    int  `mapstructure:"max_retry"`
}

// IsProduction reports whether the bot runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
