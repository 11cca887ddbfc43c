// Package requestid carries a per-request identifier through HTTP handlers,
// context values and log records.
//
// Middleware reuses a client supplied X-Request-ID when it is a short token
// of letters, digits, '-' and '_', and generates a UUID otherwise. The id is
// echoed in the response header and stored in the request context.
//
// The check-in ledger uses the same id as the idempotency key of the session
// record it writes, so a kiosk that retries a request with the same header
// never produces two records for one consumed session.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
