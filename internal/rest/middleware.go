// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/correlation"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// authenticatedUIDKey holds the account identity of a caller that presented
// a valid session token.
const authenticatedUIDKey contextKey = "authenticated-uid"

// TokenVerifier validates a session token and returns the account identity
// it was minted for. *passkey.JWTMinter satisfies this.
type TokenVerifier interface {
	VerifySubject(tokenString string) (string, error)
}

// AuthenticatedUID returns the verified account identity from the context,
// or an empty string for anonymous callers.
func AuthenticatedUID(ctx context.Context) string {
	if uid, ok := ctx.Value(authenticatedUIDKey).(string); ok {
		return uid
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// newResponseWriter creates a new responseWriter.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs HTTP requests using the configured logger.
// The installation token is never logged; only its presence is.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			ctx := r.Context()

			hasInstance := r.Header.Get(InstanceTokenHeader) != ""

			s.logger.Debug("Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"has_instance_token", hasInstance,
				"correlation_id", correlation.GetCorrelationID(ctx))

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			s.logger.Info("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", duration.String(),
				"correlation_id", correlation.GetCorrelationID(ctx))
		})
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					s.logger.Errorf("Panic recovered on %s %s: %v", r.Method, r.URL.Path, err)
					writeErrorWithMessage(w, ErrInternalError, "An unexpected error occurred", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware adds CORS headers to responses. Ceremony endpoints are
// called from browser contexts on the relying party origin as well as from
// native apps.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+InstanceTokenHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// BearerAuthMiddleware verifies an optional session token on ceremony
// requests. Anonymous requests pass through untouched; a present but invalid
// token is rejected so a stale session cannot silently downgrade a
// registration to a fresh anonymous account.
func (s *Server) BearerAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || s.verifier == nil {
				writeErrorWithMessage(w, ErrUnauthorized, "Unsupported authorization scheme", http.StatusUnauthorized)
				return
			}

			uid, err := s.verifier.VerifySubject(token)
			if err != nil {
				s.logger.Debugf("Rejected session token: %v", err)
				writeErrorWithMessage(w, ErrUnauthorized, "Invalid session token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authenticatedUIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
