// Package config loads service configuration from layered YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every override, nested with "__",
// e.g. CHECKOUT_PAYMENT__SECRET_KEY or CHECKOUT_POSTGRES__DSN.
const EnvPrefix = "CHECKOUT_"

type Config struct {
	App struct {
		Name         string `koanf:"name"`
		Env          string `koanf:"env"`
		HTTPAddr     string `koanf:"http_addr"`
		PublicURL    string `koanf:"public_url"`
		ThankYouPath string `koanf:"thank_you_path"`
		InvoiceURL   string `koanf:"invoice_url"`
		// AdminToken guards the product upsert route when set.
		AdminToken string `koanf:"admin_token"`
		// SeedDemo loads a sample catalog into the in-memory store.
		SeedDemo bool `koanf:"seed_demo"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	} `koanf:"http"`

	Log struct {
		Level      string `koanf:"level"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
		Compress   bool   `koanf:"compress"`
	} `koanf:"log"`

	Postgres struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"postgres"`

	Redis struct {
		Addr      string        `koanf:"addr"`
		Password  string        `koanf:"password"`
		DB        int           `koanf:"db"`
		KeyPrefix string        `koanf:"key_prefix"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers      []string      `koanf:"brokers"`
		Topic        string        `koanf:"topic"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
	} `koanf:"kafka"`

	RabbitMQ struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
	} `koanf:"rabbitmq"`

	Payment struct {
		APIBase            string        `koanf:"api_base"`
		SecretKey          string        `koanf:"secret_key"`
		WebhookSecret      string        `koanf:"webhook_secret"`
		Currency           string        `koanf:"currency"`
		Timeout            time.Duration `koanf:"timeout"`
		SignatureTolerance time.Duration `koanf:"signature_tolerance"`
	} `koanf:"payment"`

	Moderation struct {
		APIBase string        `koanf:"api_base"`
		APIKey  string        `koanf:"api_key"`
		Model   string        `koanf:"model"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"moderation"`

	Token struct {
		Secret string        `koanf:"secret"`
		Issuer string        `koanf:"issuer"`
		TTL    time.Duration `koanf:"ttl"`
	} `koanf:"token"`
}

// Load reads <dir>/base.yaml, then <dir>/<env>.yaml when present, then
// CHECKOUT_* environment variables.
func Load(dir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: load base: %w", err)
	}

	if envName != "" {
		overlay := filepath.Join(dir, envName+".yaml")
		if _, err := os.Stat(overlay); err == nil {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", overlay, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if envName != "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ToLower(s)
}

// Validate checks keys the service cannot start without. A missing payment
// secret key is allowed; checkout then reports the provider as unavailable.
func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	if c.App.PublicURL == "" {
		errs = append(errs, errors.New("app.public_url required"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret required"))
	}
	if c.Token.Secret == "" {
		errs = append(errs, errors.New("token.secret required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
