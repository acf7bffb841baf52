package log

import (
	"context"
	"log/slog"
	"net/http"
)

// LogHTTPEnd logs the completion of an HTTP request at a level derived
// from the status code.
func LogHTTPEnd(ctx context.Context, logger *Logger, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	logger.Logger.Log(ctx, level, "HTTP request completed",
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldQuery, r.URL.RawQuery,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400,
		FieldClientIP, clientIP,
		FieldComponent, ComponentHTTP,
	)
}
