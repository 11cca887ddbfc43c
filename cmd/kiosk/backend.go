package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/checkin/mongostore"
	"github.com/dmitrymomot/kiosk/pkg/checkin/pgstore"
	"github.com/dmitrymomot/kiosk/pkg/checkin/redisstore"
	"github.com/dmitrymomot/kiosk/pkg/httpserver"
	"github.com/dmitrymomot/kiosk/pkg/mongo"
	"github.com/dmitrymomot/kiosk/pkg/pg"
	"github.com/dmitrymomot/kiosk/pkg/ratelimiter"
	"github.com/dmitrymomot/kiosk/pkg/redis"
)

type store interface {
	checkin.Store
	checkin.IssuerStore
}

// backend is an opened store with its probes and shutdown hooks.
type backend struct {
	store   store
	limiter ratelimiter.Store
	checks  []httpserver.Check
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg Config, log *slog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		log.WarnContext(ctx, "using in-memory store, balances are lost on restart")
		mem := ratelimiter.NewMemoryStore()
		return &backend{
			store:   checkin.NewMemoryStore(),
			limiter: mem,
			closers: []func(){mem.Close},
		}, nil

	case DriverPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
			pool.Close()
			return nil, err
		}
		mem := ratelimiter.NewMemoryStore()
		return &backend{
			store:   pgstore.New(pool),
			limiter: mem,
			checks:  []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
			closers: []func(){pool.Close, mem.Close},
		}, nil

	case DriverRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:   redisstore.New(client, cfg.Redis.KeyPrefix),
			limiter: ratelimiter.NewRedisStore(client, cfg.Redis.KeyPrefix),
			checks:  []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(client)}},
			closers: []func(){func() { _ = client.Close() }},
		}, nil

	case DriverMongo:
		client, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(client.Database(cfg.Mongo.Database))
		if err := s.Migrate(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		mem := ratelimiter.NewMemoryStore()
		return &backend{
			store:   s,
			limiter: mem,
			checks:  []httpserver.Check{{Name: "mongo", Fn: mongo.Healthcheck(client)}},
			closers: []func(){
				func() { _ = client.Disconnect(context.Background()) },
				mem.Close,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
