// Package middleware holds HTTP middleware applied across the router.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/lumenlearn/lumen-api/internal/api/shared"
)

// TraceMiddleware adds a trace ID to the request context. Apply it
// early so every handler and log line can correlate.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.With(slog.String("trace_id", shared.GetTraceID(ctx))).
			Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
