//go:build integration

package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/checkin/pgstore"
	"github.com/dmitrymomot/kiosk/pkg/checkin/storetest"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/pg"
)

func TestStore_Conformance(t *testing.T) {
	ctx := context.Background()

	container, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("kiosk"),
		postgrescontainer.WithUsername("kiosk"),
		postgrescontainer.WithPassword("kiosk"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: connStr,
		MaxOpenConns:     20,
		MaxIdleConns:     1,
		RetryAttempts:    5,
		RetryInterval:    500 * time.Millisecond,
		MigrationsTable:  "kiosk_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, logger.Discard()))
	// Applying twice is a no-op.
	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, logger.Discard()))
	require.NoError(t, pg.Healthcheck(pool)(ctx))

	storetest.Run(t, func(t *testing.T) storetest.Harness {
		_, err := pool.Exec(ctx, "TRUNCATE kiosk_session_records, kiosk_session_consumptions, kiosk_subscriptions")
		require.NoError(t, err)

		store := pgstore.New(pool)
		return storetest.Harness{
			Store: store,
			Records: func(t *testing.T, code string) []checkin.SessionRecord {
				records, err := store.Records(ctx, code)
				require.NoError(t, err)
				return records
			},
		}
	})
}
