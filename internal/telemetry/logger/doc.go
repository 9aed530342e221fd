// Package logger provides structured logging for condkv.
//
// It wraps log/slog:
//
//   - logger.go: handler setup, global level, package-level helpers
//   - context.go: context propagation of the logger and connection ID
//   - redact.go: masking of passwords, verifiers and credential payloads
//
// The level is held in a slog.LevelVar so it can be changed at runtime,
// for example when the configuration file is reloaded.
package logger
