// Package logging provides structured logging for Device Core.
//
// It wraps log/slog with the service's default attributes and a small
// helper for component-scoped loggers, so the rest of the codebase never
// constructs handlers directly.
//
// # Configuration
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "json"   # json, text
//	  output: "stdout" # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	wsLog := logger.Component("websocket")
//	wsLog.Info("client connected", "client_id", id)
//
// Never log secrets, tokens, or password material. Log identifiers and
// prefixes instead.
package logging
