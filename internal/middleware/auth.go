package middleware

import (
	"crypto/subtle"
	"net/http"

	"lostfound-rest-api/pkg/apierror"
)

// LoginKeyHeader carries the admin key.
const LoginKeyHeader = "X-Login-Key"

// AdminKey rejects requests whose X-Login-Key header does not match key.
// An empty key disables the check.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidLoginKey(r.Header.Get(LoginKeyHeader), key) {
				writeError(w, apierror.Unauthorized("Invalid or missing login key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidLoginKey compares provided against key in constant time.
func ValidLoginKey(provided, key string) bool {
	if provided == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
