package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// UserIDHeader carries the already-authenticated caller identity. The auth
// boundary upstream validates it; this layer only parses and enforces
// presence.
const UserIDHeader = "X-User-ID"

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}

func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// callerID extracts the authenticated user from the request. A missing or
// malformed header is an auth failure, written directly to the response.
func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+UserIDHeader+" header")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "malformed "+UserIDHeader+" header")
		return uuid.Nil, false
	}
	return id, true
}
