// Package api implements the keyline REST API using chi.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/starford/keyline/internal/docservice"
)

type ctxKey int

const docPathKey ctxKey = iota

// AuthMiddleware returns middleware that validates a Bearer token.
// When enabled is false every request passes through.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireDocument resolves the ?path= query of session routes and stores
// the normalized library path in the request context.
func requireDocument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := docservice.NormalizePath(r.URL.Query().Get("path"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), docPathKey, p)))
	})
}

func sessionPath(r *http.Request) string {
	p, _ := r.Context().Value(docPathKey).(string)
	return p
}
