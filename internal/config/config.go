package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" validate:"required"`
	Retry      RetryConfig      `mapstructure:"retry" validate:"required"`
	Credits    CreditsConfig    `mapstructure:"credits" validate:"required"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" validate:"required"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

// ServerConfig contains HTTP server and process settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// Role selects which parts of the process run: the HTTP API, the job
	// workers and schedulers, or both.
	Role            string        `mapstructure:"role" validate:"required,oneof=all api worker"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
}

// AuthConfig contains token and password hashing settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// SummarizerConfig selects and configures the external summarization backend.
type SummarizerConfig struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=huggingface gemini"`
	APIURL   string `mapstructure:"api_url" validate:"omitempty,url"`
	APIToken string `mapstructure:"api_token" validate:"required"`
	// Model defaults per provider, see DefaultModels.
	Model string `mapstructure:"model" validate:"required"`
	// MaxLength bounds the summary length requested from the backend.
	MaxLength int `mapstructure:"max_length" validate:"gt=0"`
	// RequestsPerSecond limits outbound calls across all workers. Zero
	// disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	PromptTemplate    string  `mapstructure:"prompt_template"`
}

// RetryConfig controls retries of transient summarization failures.
type RetryConfig struct {
	// MaxAttempts counts the first call, so 3 means at most two retries.
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay      time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay       time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gt=0"`
}

// MaxDuration is the longest one summarization can take: every attempt
// running to its timeout plus the backoff waits between them.
func (r RetryConfig) MaxDuration() time.Duration {
	total := time.Duration(r.MaxAttempts) * r.AttemptTimeout
	delay := r.BaseDelay
	for n := 1; n < r.MaxAttempts && delay > 0; n++ {
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
		total += delay
		delay *= 2
	}
	return total
}

// CreditsConfig contains the pricing and reset policy.
type CreditsConfig struct {
	JobCost       int    `mapstructure:"job_cost" validate:"gt=0"`
	Baseline      int    `mapstructure:"baseline" validate:"gte=0"`
	ResetSchedule string `mapstructure:"reset_schedule" validate:"required"`
}

// DispatchConfig contains queueing and worker pool settings.
type DispatchConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=memory rabbitmq"`
	WorkerCount int    `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize   int    `mapstructure:"queue_size" validate:"gt=0"`
	// RetryDelay is how long a delivery waits before redelivery after an
	// infrastructure error.
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	StuckJobAge time.Duration `mapstructure:"stuck_job_age" validate:"gt=0"`
	// PendingSweepAge is how long a job may stay pending before the
	// reaper enqueues it again.
	PendingSweepAge time.Duration `mapstructure:"pending_sweep_age" validate:"gt=0"`
	ReaperSchedule  string        `mapstructure:"reaper_schedule" validate:"required"`
}

// RabbitMQConfig is required when dispatch.backend is rabbitmq.
type RabbitMQConfig struct {
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Queue string `mapstructure:"queue"`
}

// RedisConfig enables the scheduler lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" validate:"gte=0"`
}
