// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the shared key protecting operator endpoints.
const AdminKeyHeader = "X-Admin-Key"

// AdminAuth rejects requests that do not present the configured admin key.
// The comparison is constant-time.
func AdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminKeyHeader)
			if presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(adminKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
