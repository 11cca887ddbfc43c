// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags and are populated by
// Load. An optional .env file in the working directory is read first without
// overriding the real environment. LoadEnv loads explicit files, for example
// per-site overrides on a kiosk.
//
//	type Config struct {
//		AppEnv  string `env:"APP_ENV" envDefault:"development"`
//		Scanner scanner.Config
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
