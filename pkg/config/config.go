package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	// Object storage (MinIO or any S3-compatible endpoint).
	S3Endpoint  string `mapstructure:"S3_ENDPOINT" validate:"required"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY_ID" validate:"required"`
	S3SecretKey string `mapstructure:"S3_SECRET_ACCESS_KEY" validate:"required"`
	S3Bucket    string `mapstructure:"S3_BUCKET" validate:"required"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`

	// Build job submission.
	Kubeconfig         string        `mapstructure:"KUBECONFIG"`
	BuildNamespace     string        `mapstructure:"BUILD_NAMESPACE" validate:"required"`
	BuildImage         string        `mapstructure:"BUILD_IMAGE" validate:"required"`
	BuildJobTTL        time.Duration `mapstructure:"BUILD_JOB_TTL" validate:"required"`
	BuildSubmitTimeout time.Duration `mapstructure:"BUILD_SUBMIT_TIMEOUT" validate:"required"`
	BuildStaleAfter    time.Duration `mapstructure:"BUILD_STALE_AFTER" validate:"required"`
	ReconcileInterval  time.Duration `mapstructure:"RECONCILE_INTERVAL" validate:"required"`
	CallbackBaseURL    string        `mapstructure:"CALLBACK_BASE_URL" validate:"required,url"`

	// Tenant runner routing.
	BaseDomain       string `mapstructure:"BASE_DOMAIN" validate:"required"`
	ClusterSvcDomain string `mapstructure:"CLUSTER_SVC_DOMAIN" validate:"required"`

	// Shared-secret credentials for machine callers.
	RunnerSecretToken string `mapstructure:"RUNNER_SECRET_TOKEN" validate:"required"`
	GeneratorToken    string `mapstructure:"GENERATOR_TOKEN" validate:"required"`
	GeneratorHostname string `mapstructure:"GENERATOR_HOSTNAME"`

	// Vault KV backing for environment variable values.
	VaultAddr  string `mapstructure:"VAULT_ADDR" validate:"required,url"`
	VaultToken string `mapstructure:"VAULT_TOKEN" validate:"required"`
	VaultMount string `mapstructure:"VAULT_MOUNT" validate:"required"`

	TokenTTL            time.Duration `mapstructure:"TOKEN_TTL" validate:"required"`
	EnvironmentChartVer string        `mapstructure:"ENVIRONMENT_CHART_VERSION" validate:"required"`
	PlatformVersion     string        `mapstructure:"PLATFORM_VERSION" validate:"required"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("S3_REGION", "ap-southeast-1")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("BUILD_NAMESPACE", "platform")
	v.SetDefault("BUILD_IMAGE", "oven/bun:1.2.9-alpine")
	v.SetDefault("BUILD_JOB_TTL", "24h")
	v.SetDefault("BUILD_SUBMIT_TIMEOUT", "30s")
	v.SetDefault("BUILD_STALE_AFTER", "30m")
	v.SetDefault("RECONCILE_INTERVAL", "1m")
	v.SetDefault("CLUSTER_SVC_DOMAIN", "svc.cluster.local")
	v.SetDefault("VAULT_MOUNT", "secret")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("ENVIRONMENT_CHART_VERSION", "0.1.5")
	v.SetDefault("PLATFORM_VERSION", "1")

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	keys := []string{
		"APP_ENV", "HTTP_ADDR", "SHUTDOWN_TIMEOUT",
		"LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "ASYNQ_CONCURRENCY",
		"S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET", "S3_REGION", "S3_USE_SSL",
		"KUBECONFIG", "BUILD_NAMESPACE", "BUILD_IMAGE", "BUILD_JOB_TTL",
		"BUILD_SUBMIT_TIMEOUT", "BUILD_STALE_AFTER", "RECONCILE_INTERVAL", "CALLBACK_BASE_URL",
		"BASE_DOMAIN", "CLUSTER_SVC_DOMAIN",
		"RUNNER_SECRET_TOKEN", "GENERATOR_TOKEN", "GENERATOR_HOSTNAME",
		"VAULT_ADDR", "VAULT_TOKEN", "VAULT_MOUNT",
		"TOKEN_TTL", "ENVIRONMENT_CHART_VERSION", "PLATFORM_VERSION",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":     &c.ShutdownTimeout,
		"BUILD_JOB_TTL":        &c.BuildJobTTL,
		"BUILD_SUBMIT_TIMEOUT": &c.BuildSubmitTimeout,
		"BUILD_STALE_AFTER":    &c.BuildStaleAfter,
		"RECONCILE_INTERVAL":   &c.ReconcileInterval,
		"TOKEN_TTL":            &c.TokenTTL,
	}
	for key, dst := range durations {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// Production reports whether the process runs with the production profile.
func (c *Config) Production() bool { return c.AppEnv == "production" }
