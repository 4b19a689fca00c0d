// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text and console formats
//   - Masking of passwords in connection URLs and DSNs
//   - Context-aware logging with run IDs, job names, drivers and formats
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//
//	logger.Info("connecting",
//	    "url", "postgres://app:secret@db/sales", // logged as app:***@db
//	)
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "export finished") // includes run_id
//
// # Redaction
//
// With RedactSecrets enabled, the following are masked:
//
//   - URL userinfo: postgres://app:secret@db → postgres://app:***@db
//   - MySQL DSNs: app:secret@tcp(db:3306)/x → app:***@tcp(db:3306)/x
//   - key=value pairs: password=secret → password=***
//   - values under keys such as password, secret and token
package logging
