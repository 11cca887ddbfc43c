package main

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/kiosk/pkg/events"
	"github.com/dmitrymomot/kiosk/pkg/httpserver"
	"github.com/dmitrymomot/kiosk/pkg/mongo"
	"github.com/dmitrymomot/kiosk/pkg/pg"
	"github.com/dmitrymomot/kiosk/pkg/ratelimiter"
	"github.com/dmitrymomot/kiosk/pkg/redis"
	"github.com/dmitrymomot/kiosk/pkg/scanner"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Config is read from the environment (and .env) by config.Load.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppName  string `env:"APP_NAME" envDefault:"kiosk"`
	LogLevel string `env:"LOG_LEVEL"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`

	ScannerProfileFile string `env:"SCANNER_PROFILE_FILE"`
	ScannerProfile     string `env:"SCANNER_PROFILE"`
	MaxTerminals       int    `env:"KIOSK_MAX_TERMINALS" envDefault:"256"`
	QRCacheCapacity    int    `env:"KIOSK_QR_CACHE_CAPACITY" envDefault:"512"`

	MetricsEnabled   bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsAddr      string `env:"METRICS_ADDR"`
	RateLimitEnabled bool   `env:"RATELIMIT_ENABLED" envDefault:"true"`

	HTTP      httpserver.Config
	Scanner   scanner.Config
	RateLimit ratelimiter.Config
	Kafka     events.Config
	Postgres  pg.Config
	Redis     redis.Config
	Mongo     mongo.Config
}

// level returns the LOG_LEVEL override, if any.
func (c Config) level() (slog.Level, bool, error) {
	if c.LogLevel == "" {
		return 0, false, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, false, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return l, true, nil
}

// scannerConfig applies the selected YAML profile on top of the env thresholds.
func (c Config) scannerConfig() (scanner.Config, error) {
	cfg := c.Scanner
	if c.ScannerProfileFile != "" && c.ScannerProfile != "" {
		p, err := scanner.LoadProfileFile(c.ScannerProfileFile, c.ScannerProfile)
		if err != nil {
			return scanner.Config{}, err
		}
		cfg = p.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return scanner.Config{}, err
	}
	return cfg, nil
}
