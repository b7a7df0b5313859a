// Package logging provides structured logging for the gateway.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for development, with service and version fields on
// every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log one-time codes, broker passwords, or InfluxDB tokens.
package logging
