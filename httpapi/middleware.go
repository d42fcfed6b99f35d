package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware attaches a correlation id to the request context and
// echoes it back on the response, honoring a client-supplied id when
// present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = generateRequestID()
		}
		ctx := gwlog.WithRequestID(r.Context(), id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unavailable-request-id"
	}
	return hex.EncodeToString(b)
}

// loggingMiddleware logs one line per request at completion, with method,
// path, status, and latency.
func loggingMiddleware(log gwlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info(r.Context(), "http request",
				gwlog.F("method", r.Method),
				gwlog.F("path", r.URL.Path),
				gwlog.F("status", sw.status),
				gwlog.F("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// recoveryMiddleware converts a panic in any downstream handler into a 500
// JSON error response instead of crashing the server.
func recoveryMiddleware(log gwlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "panic in handler",
						gwlog.F("recovered", rec),
						gwlog.F("stack", string(debug.Stack())),
					)
					writeError(w, gwerrors.New(gwerrors.KindProvider, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware admits or rejects a request per client key (the
// caller's API key if present, else remote address), setting
// X-RateLimit-* headers on every response and Retry-After plus 429 on
// rejection.
func rateLimitMiddleware(limiter *ratelimit.Limiter, recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(limiter.Burst(), 'f', 0, 64))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

			if !limiter.Allow(key) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				if recorder != nil {
					recorder.RecordRateLimitRejection(key)
				}
				writeError(w, gwerrors.New(gwerrors.KindRateLimit, "rate limit exceeded: too many requests"))
				return
			}

			remaining := limiter.Remaining(key)
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(remaining, 'f', 0, 64))

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if key := bearerToken(r); key != "" {
		return key
	}
	return r.RemoteAddr
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// authMiddleware validates a bearer JWT when secret is non-empty; an empty
// secret disables authentication entirely (local/dev convenience). Health
// and metrics endpoints are expected to be mounted outside this
// middleware's scope by the caller.
func authMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{Message: "missing bearer token", Type: "authentication_error"}})
				return
			}
			parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{Message: "invalid or expired token", Type: "authentication_error"}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
