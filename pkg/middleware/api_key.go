package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key header does not match key. With an
// empty key every request is rejected.
func APIKey(key string) func(next http.Handler) http.Handler {
	if key == "" {
		zap.S().Named("auth").Error("no api key configured, every request will be rejected")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get(APIKeyHeader)), []byte(key)) != 1 {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "invalid or missing api key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
