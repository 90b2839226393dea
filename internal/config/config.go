package config

import "time"

// Config holds all application configuration, organized into logical
// groups.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"      validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"      validate:"required"`
	Generation GenerationConfig `mapstructure:"generation"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains settings for the durable job store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains settings for the result cache and the shared
// rate-limit budget.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// WorkerConfig contains worker pool and pipeline settings.
type WorkerConfig struct {
	// Concurrency caps how many jobs one pool instance processes at once.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`

	// SubConcurrency caps parallel units within a single stage.
	SubConcurrency int `mapstructure:"sub_concurrency" validate:"required,gt=0"`

	// MaxAttempts bounds retries per unit for transient failures.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// RateBudget is the shared cap on concurrent external generation
	// calls across all pool instances. Exhaustion blocks dispatch rather
	// than failing it.
	RateBudget int `mapstructure:"rate_budget" validate:"required,gt=0"`

	PollInterval      time.Duration `mapstructure:"poll_interval"      validate:"required,gt=0"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0"`

	// LeaseTimeout is how long an active job may go without a heartbeat
	// before another worker reclaims it.
	LeaseTimeout time.Duration `mapstructure:"lease_timeout" validate:"required,gt=0"`

	// UnitTimeout converts a hung external call into a transient failure
	// eligible for retry.
	UnitTimeout time.Duration `mapstructure:"unit_timeout" validate:"required,gt=0"`

	// JobTimeout is the wall-clock ceiling for one job; exceeding it
	// fails the job even if retries remain.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"required,gt=0"`

	// RetryBaseDelay seeds the exponential backoff between unit retries.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"required,gt=0"`

	// DrainTimeout bounds how long shutdown waits for in-flight jobs.
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"required,gt=0"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	// ResultTTL is how long finished bundles stay retrievable.
	ResultTTL time.Duration `mapstructure:"result_ttl" validate:"required,gt=0"`
}

// GenerationConfig contains settings for the external generation
// service adapters.
type GenerationConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`

	// MediaServiceURL is the base URL of the media service that renders
	// visuals, narration and compositions.
	MediaServiceURL string `mapstructure:"media_service_url" validate:"omitempty,url"`
}
