// Package logging provides structured logging for the LWM2M server.
//
// It wraps the standard log/slog package so every component logs through a
// single configured handler:
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("client registered", "endpoint", ep, "location", loc)
//
// Domain packages accept any value with Debug/Info/Warn/Error methods, which
// *Logger satisfies through the embedded *slog.Logger.
package logging
