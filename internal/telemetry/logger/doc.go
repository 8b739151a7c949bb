// Package logger provides structured logging for TokDrop.
//
//   - logger.go: redacting slog handler construction and runtime level control
//   - context.go: context propagation of the logger, request id and update id
//   - redact.go: masking of bot tokens and other secrets
//
// Bot API URLs embed the bot token in their path, and transport errors
// quote the URL, so string and error values are scrubbed as well as
// values under secret-looking keys.
package logger
