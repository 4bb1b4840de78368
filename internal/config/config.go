// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // CORS; empty means "*"
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	BaseBackoff    time.Duration `yaml:"base_backoff"`
}

type DatabaseConfig struct {
	URL      string      `yaml:"url"`
	MaxConns int32       `yaml:"max_conns"`
	Retry    RetryConfig `yaml:"retry"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WebhookConfig struct {
	HMACSecret      string `yaml:"hmac_secret"`      // empty accepts every payload
	SignatureHeader string `yaml:"signature_header"` // header carrying the hex signature
	RateLimit       int    `yaml:"rate_limit"`       // deliveries per source per minute; 0 disables
}

type PaymentConfig struct {
	Webhook     WebhookConfig `yaml:"webhook"`
	QRTemplate  string        `yaml:"qr_template"` // {reference} and {amount} are substituted
	Currency    string        `yaml:"currency"`
	DefaultPlan string        `yaml:"default_plan_name"`
}

type TelegramNotifyConfig struct {
	Token    string  `yaml:"token"`
	AdminIDs []int64 `yaml:"admin_ids"`
	Lang     string  `yaml:"lang"` // en|vi
}

type NotifyConfig struct {
	Telegram TelegramNotifyConfig `yaml:"telegram"`
	Workers  int                  `yaml:"workers"`
	Queue    int                  `yaml:"queue"`
}

type SchedulerConfig struct {
	BacklogInterval time.Duration `yaml:"backlog_interval"`
	StaleAfter      time.Duration `yaml:"stale_after"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse applies environment overrides and defaults, then validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Database.Retry.MaxAttempts < 1 {
		return nil, errors.New("database.retry.max_attempts must be at least 1")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnv lets deployments keep secrets out of the yaml file.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Payment.Webhook.HMACSecret, "WEBHOOK_HMAC_SECRET")
	override(&cfg.Notify.Telegram.Token, "TELEGRAM_BOT_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		// covers a full retry budget on the settlement path
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.Retry.MaxAttempts == 0 {
		cfg.Database.Retry.MaxAttempts = 3
	}
	if cfg.Database.Retry.AttemptTimeout <= 0 {
		cfg.Database.Retry.AttemptTimeout = 10 * time.Second
	}
	if cfg.Database.Retry.BaseBackoff <= 0 {
		cfg.Database.Retry.BaseBackoff = time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Payment.Webhook.SignatureHeader == "" {
		cfg.Payment.Webhook.SignatureHeader = "X-Signature"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "VND"
	}
	if cfg.Payment.DefaultPlan == "" {
		cfg.Payment.DefaultPlan = "Pro"
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.Queue <= 0 {
		cfg.Notify.Queue = 64
	}
	if cfg.Notify.Telegram.Lang == "" {
		cfg.Notify.Telegram.Lang = "en"
	}
	if cfg.Scheduler.BacklogInterval <= 0 {
		cfg.Scheduler.BacklogInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 24 * time.Hour
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
