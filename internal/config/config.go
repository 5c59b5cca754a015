package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ZibalConfig struct {
	MerchantID  string        `yaml:"merchant_id"`
	CallbackURL string        `yaml:"callback_url"`
	GatewayBase string        `yaml:"gateway_base"`
	APIBase     string        `yaml:"api_base"`
	Timeout     time.Duration `yaml:"timeout"`
	Sandbox     bool          `yaml:"sandbox"`
	// Base URL the callback handler redirects end users to
	// (…/payment/success or …/payment/failed).
	FrontendBase string `yaml:"frontend_base"`
}

type PaymentConfig struct {
	Zibal ZibalConfig `yaml:"zibal"`
}

type ReconcileConfig struct {
	Interval   time.Duration `yaml:"interval"`    // sweep period
	Lookback   time.Duration `yaml:"lookback"`    // how far back a sweep reaches
	StaleAfter time.Duration `yaml:"stale_after"` // pending-at-gateway age before expiring
	Limit      int           `yaml:"limit"`
}

type SubscriptionConfig struct {
	BaseMonthlyPriceIRR int64 `yaml:"base_monthly_price_irr"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Payment      PaymentConfig      `yaml:"payment"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Admin        AdminConfig        `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Payment.Zibal.Timeout <= 0 {
		cfg.Payment.Zibal.Timeout = 10 * time.Second
	}
	if cfg.Reconcile.Interval <= 0 {
		cfg.Reconcile.Interval = 3 * time.Hour
	}
	if cfg.Reconcile.Lookback <= 0 {
		cfg.Reconcile.Lookback = 24 * time.Hour
	}
	if cfg.Reconcile.StaleAfter <= 0 {
		cfg.Reconcile.StaleAfter = 30 * time.Minute
	}
	if cfg.Reconcile.Limit <= 0 {
		cfg.Reconcile.Limit = 200
	}
	if cfg.Subscription.BaseMonthlyPriceIRR <= 0 {
		cfg.Subscription.BaseMonthlyPriceIRR = 500_000
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Payment.Zibal.CallbackURL == "" {
		return nil, errors.New("payment.zibal.callback_url is required")
	}
	if !cfg.Payment.Zibal.Sandbox && cfg.Payment.Zibal.MerchantID == "" {
		return nil, errors.New("payment.zibal.merchant_id is required outside sandbox")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
