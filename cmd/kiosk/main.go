// Command kiosk serves the gym check-in kiosk API.
//
//	kiosk                 run the HTTP server
//	kiosk issue [flags]   create a subscription and print its code
//
// Configuration comes from the environment and an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/config"
	"github.com/dmitrymomot/kiosk/pkg/events"
	"github.com/dmitrymomot/kiosk/pkg/httpserver"
	"github.com/dmitrymomot/kiosk/pkg/kioskapi"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/metrics"
	"github.com/dmitrymomot/kiosk/pkg/ratelimiter"
	"github.com/dmitrymomot/kiosk/pkg/requestid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "issue" {
		err = issue(ctx, os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "kiosk:", err)
		os.Exit(1)
	}
}

func loadConfig() (Config, *slog.Logger, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return cfg, nil, err
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), kioskapi.TerminalExtractor()),
	}
	level, ok, err := cfg.level()
	if err != nil {
		return cfg, nil, err
	}
	if ok {
		opts = append(opts, logger.WithLevel(level))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return cfg, log, nil
}

func run(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	scannerCfg, err := cfg.scannerConfig()
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	var hooks []checkin.Hook
	apiOpts := []kioskapi.Option{
		kioskapi.WithLogger(log),
		kioskapi.WithScannerConfig(scannerCfg),
		kioskapi.WithMaxTerminals(cfg.MaxTerminals),
		kioskapi.WithQRCacheCapacity(cfg.QRCacheCapacity),
		kioskapi.WithReadiness(be.checks...),
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		hooks = append(hooks, m.LedgerHook())
		apiOpts = append(apiOpts, kioskapi.WithScannerObserver(m.ScannerObserver()))
		if cfg.MetricsAddr == "" {
			apiOpts = append(apiOpts, kioskapi.WithMetricsHandler(m.Handler()))
		}
	}

	if cfg.Kafka.Enabled() {
		w := events.NewWriter(cfg.Kafka, log)
		defer func() {
			if err := w.Close(); err != nil {
				log.Error("kafka writer close failed", logger.Error(err))
			}
		}()
		hooks = append(hooks, events.NewPublisher(w, events.WithLogger(log)))
	}

	if cfg.RateLimitEnabled {
		limiter, err := ratelimiter.NewBucket(be.limiter, cfg.RateLimit)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, kioskapi.WithLimiter(limiter))
	}

	ledger := checkin.NewLedger(be.store, checkin.WithLogger(log), checkin.WithHooks(hooks...))
	api := kioskapi.New(ledger, apiOpts...)
	defer api.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
		return srv.Run(ctx, api.Router())
	})
	if m != nil && cfg.MetricsAddr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			srv := httpserver.NewFromConfig(httpserver.Config{Addr: cfg.MetricsAddr}, httpserver.WithLogger(log))
			return srv.Run(ctx, mux)
		})
	}

	log.InfoContext(ctx, "kiosk started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("store", cfg.StoreDriver),
		slog.Bool("metrics", cfg.MetricsEnabled),
		slog.Bool("kafka", cfg.Kafka.Enabled()),
	)
	return g.Wait()
}
