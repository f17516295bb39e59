// Package logging provides structured logging for Relay Core.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default service/version attributes
// on every record.
//
// Components do not depend on this package directly; they accept a
// small consumer-side Logger interface (Debug/Info/Warn/Error) which
// *logging.Logger satisfies. This keeps packages testable without a
// configured logger and avoids any global logging state.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	engineLog := log.With("component", "engine")
//	engineLog.Info("scan complete", "successes", 3)
package logging
