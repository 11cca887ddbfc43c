// Package mongo connects to the MongoDB deployment backing the Mongo
// subscription store.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
// New pings the server before returning and retries with exponential
// backoff. Healthcheck wraps the same ping for readiness probes.
package mongo
