// Package config reads cart engine settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/nikolayk812/storefront-cart/internal/currency"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/itemcache"
	"github.com/nikolayk812/storefront-cart/internal/render"
	"github.com/nikolayk812/storefront-cart/internal/repository"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

type Config struct {
	Backend     Backend `env:"CART_BACKEND" envDefault:"sqlite"`
	SQLitePath  string  `env:"CART_SQLITE_PATH" envDefault:"cart.db"`
	PostgresDSN string  `env:"CART_POSTGRES_DSN"`
	RedisAddr   string  `env:"CART_REDIS_ADDR" envDefault:"localhost:6379"`

	CartKey        string `env:"CART_KEY"`
	SettingsKey    string `env:"CART_SETTINGS_KEY"`
	DefaultSymbol  string `env:"CART_DEFAULT_CURRENCY"`
	ActiveCurrency string `env:"CART_ACTIVE_CURRENCY"`
	CatalogModel   string `env:"CART_CATALOG_MODEL" envDefault:"unique"`

	Throttle time.Duration `env:"CART_RENDER_THROTTLE"`
	CacheTTL time.Duration `env:"CART_CACHE_TTL"`

	LogLevel     string `env:"CART_LOG_LEVEL" envDefault:"info"`
	OTELEndpoint string `env:"CART_OTEL_ENDPOINT"`
}

// Load reads an optional .env file in the working directory, then the
// environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("godotenv.Load: %w", err)
	}

	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("cfg.Validate: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CartKey == "" {
		c.CartKey = repository.DefaultCartKey
	}
	if c.SettingsKey == "" {
		c.SettingsKey = currency.DefaultSettingsKey
	}
	if c.DefaultSymbol == "" {
		c.DefaultSymbol = currency.DefaultSymbol
	} else {
		c.DefaultSymbol = currency.SymbolFor(c.DefaultSymbol)
	}
	if c.Throttle == 0 {
		c.Throttle = render.DefaultThrottle
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = itemcache.DefaultTTL
	}
	c.Backend = Backend(strings.ToLower(string(c.Backend)))
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is empty")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn is empty")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis addr is empty")
		}
	default:
		return fmt.Errorf("backend[%s] is not valid", c.Backend)
	}

	if _, err := domain.ParseCatalogModel(c.CatalogModel); err != nil {
		return fmt.Errorf("domain.ParseCatalogModel: %w", err)
	}

	if c.Throttle < 0 {
		return fmt.Errorf("render throttle is negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl is negative")
	}

	return nil
}

func (c Config) Model() domain.CatalogModel {
	model, err := domain.ParseCatalogModel(c.CatalogModel)
	if err != nil {
		return domain.ModelUnique
	}
	return model
}
