// Package logger builds the *slog.Logger used across the kiosk service.
//
// New applies Option functions to pick the output format (JSON or text), the
// minimum level, static attributes and a list of ContextExtractor callbacks.
// Extractors pull request-scoped values out of context.Context (the request
// id, the terminal a key stream came from) every time a record is handled, so
// call sites only pass the context.
//
// # Architecture
//
// New picks slog.NewJSONHandler or slog.NewTextHandler and wraps it in a
// handler that runs the extractors before delegating. The environment
// presets (WithEnvironment, WithDevelopment, WithProduction) set level,
// format and the "service"/"env" attributes in one call.
//
// attr.go holds the attribute constructors shared by all packages. Code is
// the important one: subscription codes are bearer credentials, so it writes
// only a masked form ("AbC1…45Pq") and full codes never reach log storage.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "session checked in",
//		logger.Code(code),
//		logger.Remaining(res.Summary.SessionsRemaining),
//	)
//
// Error and Errors return an empty attribute for nil errors, so
//
//	log.WarnContext(ctx, "append retry", logger.Error(err))
//
// needs no nil check.
package logger
