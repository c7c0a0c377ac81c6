// Package logger provides structured logging for sessfile.
//
// It configures log/slog with a process-wide level that can be changed at
// runtime:
//
//   - logger.go: handler construction, level parsing, default logger
//   - context.go: carrying a logger and a sweep run id in a context
//   - redact.go: masking of session ids and secrets in log attributes
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable while running
//   - Session ids replaced by their fingerprint
package logger
