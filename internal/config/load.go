package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DIGEST"

// DefaultModels is the model used for each provider when summarizer.model
// is unset.
var DefaultModels = map[string]string{
	"huggingface": "facebook/bart-large-cnn",
	"gemini":      "gemini-1.5-flash",
}

// defaults holds the value of every key that has one. Keys without a
// default (secrets, connection URLs) are bound explicitly in Load.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.role":             "all",
	"server.shutdown_timeout": "15s",

	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": "5m",

	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,

	"summarizer.provider":            "huggingface",
	"summarizer.api_url":             "https://api-inference.huggingface.co/models",
	"summarizer.max_length":          100,
	"summarizer.requests_per_second": 0,
	"summarizer.prompt_template":     "",

	"retry.max_attempts":    3,
	"retry.base_delay":      "4s",
	"retry.max_delay":       "10s",
	"retry.attempt_timeout": "30s",

	"credits.job_cost":       10,
	"credits.baseline":       100,
	"credits.reset_schedule": "@daily",

	"dispatch.backend":           "memory",
	"dispatch.worker_count":      2,
	"dispatch.queue_size":        100,
	"dispatch.retry_delay":       "5s",
	"dispatch.stuck_job_age":     "30m",
	"dispatch.pending_sweep_age": "5m",
	"dispatch.reaper_schedule":   "@every 5m",

	"rabbitmq.queue": "summarize.jobs",

	"redis.db":       0,
	"redis.lock_ttl": "1m",
}

// unbound lists keys with no default that must still be readable from the
// environment.
var unbound = []string{
	"database.url",
	"auth.jwt_secret",
	"summarizer.api_token",
	"summarizer.model",
	"rabbitmq.url",
	"redis.addr",
	"redis.password",
}

// Load reads configuration from environment variables and, when present, a
// config.yaml in the working directory. Environment variables take
// precedence over the file. The result is validated before it is returned.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range unbound {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	applyProviderDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Dispatch.Backend == "rabbitmq" && cfg.RabbitMQ.URL == "" {
		return errors.New("configuration validation failed: rabbitmq.url is required when dispatch.backend is rabbitmq")
	}

	// Split api and worker processes cannot share an in-process queue.
	if cfg.Server.Role != "all" && cfg.Dispatch.Backend == "memory" {
		return fmt.Errorf("configuration validation failed: server.role %q requires dispatch.backend rabbitmq", cfg.Server.Role)
	}

	if cfg.Retry.MaxDelay > 0 && cfg.Retry.BaseDelay > cfg.Retry.MaxDelay {
		return errors.New("configuration validation failed: retry.base_delay must not exceed retry.max_delay")
	}

	// The reaper must not fail a job whose summarization is still running.
	if worst := cfg.Retry.MaxDuration(); cfg.Dispatch.StuckJobAge <= worst {
		return fmt.Errorf(
			"configuration validation failed: dispatch.stuck_job_age %s must exceed the longest summarization (%s)",
			cfg.Dispatch.StuckJobAge, worst)
	}

	return nil
}

func applyProviderDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Summarizer.Model) == "" {
		cfg.Summarizer.Model = DefaultModels[cfg.Summarizer.Provider]
	}
}
