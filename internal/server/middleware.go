// Package server implements the entryrev HTTP handlers and middleware.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kilupskalvis/entryrev/internal/core"
)

const requestIDHeader = "X-Request-ID"

type requestStateKey struct{}

// requestState is filled in as a request passes the middleware chain. Auth
// runs inside the tracer, so it records the actor here for the access log.
type requestState struct {
	id      string
	actor   string
	tokenID string
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateKey{}).(*requestState)
	return st
}

// requestIDFrom returns the request ID assigned by traceMiddleware
func requestIDFrom(ctx context.Context) string {
	if st := stateFrom(ctx); st != nil {
		return st.id
	}
	return ""
}

// traceMiddleware assigns a request ID, reusing a well-formed incoming one,
// and writes one access log line per request.
func traceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			st := &requestState{id: id}
			w.Header().Set(requestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestStateKey{}, st)))

			level := slog.LevelInfo
			switch {
			case rec.status() >= 500:
				level = slog.LevelError
			case rec.status() >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"request_id", st.id,
				"method", r.Method,
				"route", routePattern(r),
				"path", r.URL.Path,
				"status", rec.status(),
				"bytes", rec.bytes,
				"duration", time.Since(start),
				"actor", st.actor,
				"token_id", st.tokenID,
			)
		})
	}
}

// routePattern returns the matched chi route, e.g. /entries/{id}/revisions
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// recoverMiddleware turns a handler panic into a 500 carrying the request ID.
func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				reqID := requestIDFrom(r.Context())
				logger.Error("handler panic",
					"request_id", reqID,
					"route", routePattern(r),
					"panic", p,
					"stack", string(debug.Stack()))
				if rec.code == 0 {
					writeJSON(rec, http.StatusInternalServerError, map[string]string{
						"error":      "internal_error",
						"message":    "internal server error",
						"request_id": reqID,
					})
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// authMiddleware resolves the bearer token to an actor and puts the actor in
// the request context.
func authMiddleware(tokens TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="entryrev"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "bearer token required",
				})
				return
			}

			info, err := tokens.GetByHash(HashToken(raw))
			if err != nil || info == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="entryrev", error="invalid_token"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "unknown token",
				})
				return
			}

			if st := stateFrom(r.Context()); st != nil {
				st.actor = info.Actor
				st.tokenID = info.ID
			}
			next.ServeHTTP(w, r.WithContext(core.WithActor(r.Context(), info.Actor)))
		})
	}
}

// statusRecorder captures the status code and body size of a response
type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) status() int {
	if s.code == 0 {
		return http.StatusOK
	}
	return s.code
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// HashToken returns the SHA256 hex digest of a raw token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
