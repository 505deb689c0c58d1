// File: internal/config/config.go
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
	Username    string `yaml:"username"`
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"omitempty,oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr" envconfig:"HTTP_ADDR" validate:"required"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type AdminConfig struct {
	Username     string        `yaml:"username" envconfig:"ADMIN_USERNAME"`
	Password     string        `yaml:"password" envconfig:"ADMIN_PASSWORD"`
	JWTSecret    string        `yaml:"jwt_secret" envconfig:"ADMIN_JWT_SECRET" validate:"required_with=Password"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"DATABASE_URL" validate:"required"`
	MaxConns int32  `yaml:"max_conns" validate:"gte=0"`
}

type RedisConfig struct {
	URL            string        `yaml:"url" envconfig:"REDIS_URL"`
	Password       string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB             int           `yaml:"db"`
	WebhookLockTTL time.Duration `yaml:"webhook_lock_ttl"`
	CreateLimit    int           `yaml:"create_limit"`  // payment/create calls per window per buyer
	CreateWindow   time.Duration `yaml:"create_window"` // rate limiter window
	ProductTTL     time.Duration `yaml:"product_ttl"`   // catalog cache entry lifetime
}

type AMQPConfig struct {
	URL      string `yaml:"url" envconfig:"AMQP_URL"`
	Exchange string `yaml:"exchange"`
}

type MonobankConfig struct {
	Token           string        `yaml:"token" envconfig:"XTOKEN"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	Currency        int           `yaml:"currency"`
	InvoiceValidity time.Duration `yaml:"invoice_validity"`
	Timeout         time.Duration `yaml:"timeout"`
}

type RedirectConfig struct {
	WebAppURL string `yaml:"web_app_url" envconfig:"WEB_APP_URL"`
	BotLink   string `yaml:"bot_link" envconfig:"BOT_LINK_FOR_REDIRECT"`
}

type PaymentConfig struct {
	Monobank MonobankConfig `yaml:"monobank"`
	Redirect RedirectConfig `yaml:"redirect"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	ExpireAfter  time.Duration `yaml:"expire_after"`
	BatchSize    int           `yaml:"batch_size" validate:"gte=0,lte=1000"`
}

type NotifyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
	Locale  string        `yaml:"locale"`
}

type SecurityConfig struct {
	EncryptionKey  string        `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY" validate:"omitempty,len=16|len=24|len=32"`
	InitDataMaxAge time.Duration `yaml:"init_data_max_age"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// DefaultBotLink is the last redirect fallback after web_app_url and bot_link.
const DefaultBotLink = "https://t.me/FlixMarketBot"

// RedirectURL returns the post-payment return target.
func (c PaymentConfig) RedirectURL() string {
	if u := strings.TrimSpace(c.Redirect.WebAppURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(c.Redirect.BotLink); u != "" {
		return u
	}
	return DefaultBotLink
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	// A missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()
	return Load(configPath, dev)
}

// Load reads the yaml file, overlays environment variables and validates the result.
// An empty path skips the file and configures from the environment only.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Redis.WebhookLockTTL <= 0 {
		cfg.Redis.WebhookLockTTL = 30 * time.Second
	}
	if cfg.Redis.CreateLimit <= 0 {
		cfg.Redis.CreateLimit = 5
	}
	if cfg.Redis.CreateWindow <= 0 {
		cfg.Redis.CreateWindow = time.Minute
	}
	if cfg.Redis.ProductTTL <= 0 {
		cfg.Redis.ProductTTL = 10 * time.Minute
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "payment_events"
	}
	if cfg.Payment.Monobank.BaseURL == "" {
		cfg.Payment.Monobank.BaseURL = "https://api.monobank.ua/"
	}
	if cfg.Payment.Monobank.Currency == 0 {
		cfg.Payment.Monobank.Currency = 980
	}
	if cfg.Payment.Monobank.InvoiceValidity <= 0 {
		cfg.Payment.Monobank.InvoiceValidity = time.Hour
	}
	if cfg.Payment.Monobank.Timeout <= 0 {
		cfg.Payment.Monobank.Timeout = 15 * time.Second
	}
	if cfg.Scheduler.PollInterval <= 0 {
		cfg.Scheduler.PollInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 5 * time.Minute
	}
	if cfg.Scheduler.ExpireAfter <= 0 {
		cfg.Scheduler.ExpireAfter = 2 * time.Hour
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.Locale == "" {
		cfg.Notify.Locale = "uk"
	}
	if cfg.Security.InitDataMaxAge <= 0 {
		cfg.Security.InitDataMaxAge = 24 * time.Hour
	}
}
