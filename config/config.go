package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Redis configuration
	RedisURL      string `env:"REDIS_URL" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// PubNub configuration
	PubNubPublishKey   string `env:"PUBNUB_PUBLISH_KEY"`
	PubNubSubscribeKey string `env:"PUBNUB_SUBSCRIBE_KEY"`
	PubNubSecretKey    string `env:"PUBNUB_SECRET_KEY"`
	PubNubUserID       string `env:"PUBNUB_USER_ID" env-default:"volunteer-hub-server"`

	// Signup ledger
	TxMaxRetries     int           `env:"TX_MAX_RETRIES" env-default:"25"`
	SignupRateLimit  int           `env:"SIGNUP_RATE_LIMIT" env-default:"20"`
	SignupRateWindow time.Duration `env:"SIGNUP_RATE_WINDOW" env-default:"1m"`

	// Live boards
	BoardIdleTTL    time.Duration `env:"BOARD_IDLE_TTL" env-default:"10m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" env-default:"1m"`
	RoleCacheTTL    time.Duration `env:"ROLE_CACHE_TTL" env-default:"1m"`

	// Monitoring
	EnableMetrics bool   `env:"ENABLE_METRICS" env-default:"true"`
	MetricsPort   string `env:"METRICS_PORT" env-default:"9090"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if cfg.TxMaxRetries < 1 {
		return nil, fmt.Errorf("TX_MAX_RETRIES must be positive, got %d", cfg.TxMaxRetries)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return cfg
}
