// Package logger configures structured JSON logging with log/slog and
// carries request- or job-scoped loggers through a context.Context.
package logger
