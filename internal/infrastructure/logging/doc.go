// Package logging provides structured logging for GeoControl Core.
//
// It wraps log/slog with a JSON (production), text or colourised console
// (development, via tint) handler, level filtering and the default
// attributes service and version.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console
//	  output: "stdout"   # stdout, stderr
//
// Never log passwords, tokens or the JWT secret.
package logging
