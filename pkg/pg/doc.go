// Package pg bootstraps the PostgreSQL connection used by the Postgres
// subscription store.
//
// Connect opens a pgx pool from Config (populated from PG_* environment
// variables) and retries with exponential backoff until the database
// answers a ping. Migrate runs goose migrations from an fs.FS, normally the
// embedded migration set of pgstore. Healthcheck returns a readiness probe.
//
//	pool, err := pg.Connect(ctx, cfg.Postgres)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
//		return err
//	}
//
// IsNotFoundError, IsDuplicateKeyError and IsCheckViolationError classify
// pgx errors without callers importing pgconn.
package pg
