package logging

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying logger. Request handlers pick
// it back up with FromContext, so they log through the server's configured
// logger without threading it through every call site.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx. When none was attached it
// falls back to a plain text logger rather than failing.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return New(Config{Level: "info", Format: "text"})
}

// Middleware attaches logger to the context of every request passing
// through it.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}
