// Package httpserver runs the kiosk HTTP API with graceful shutdown.
//
// Run blocks until its context is cancelled (main wires that to SIGINT and
// SIGTERM) and then gives in-flight requests ShutdownTimeout to finish.
// Request contexts are detached from the run context, so a shutdown does not
// cancel a check-in halfway through a store call.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// LivenessHandler and ReadinessHandler serve the /health endpoints; readiness
// runs named checks such as pg.Healthcheck.
package httpserver
