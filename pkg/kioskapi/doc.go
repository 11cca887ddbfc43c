// Package kioskapi is the HTTP transport of the check-in kiosk.
//
// # Routes
//
//	POST   /v1/check-ins                       check in a typed or scanned code
//	GET    /v1/subscriptions/{code}            summary without consuming a session
//	GET    /v1/subscriptions/{code}/qr.png     QR image of the code, ?size=64..1024
//	POST   /v1/terminals/{terminal}/keystrokes raw key presses from a kiosk terminal
//	DELETE /v1/terminals/{terminal}            drop a terminal's buffered input
//	GET    /health/live, /health/ready         probes
//	GET    /metrics                            when a metrics handler is configured
//
// Errors are rendered as
//
//	{"error": {"code": "sessions_exhausted", "message": "..."}, "subscription": {...}}
//
// where code is the checkin.Kind name and subscription is present when the
// ledger returned a snapshot.
//
// # Terminals
//
// Every terminal id gets its own scanner.Classifier. Codes it decodes are
// checked in with the "self-check-in" attribution and returned with the
// keystroke response, one result per code. Repeated unknown or malformed
// codes from one terminal are throttled when a ratelimiter.Bucket is
// configured.
package kioskapi
