package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/pkg/requestid"
)

// Logger logs every HTTP request once it completed. Server errors are logged
// at error level, client errors at warn level and liveness probes at debug.
func Logger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger := zap.S().Named("http")
			fields := []any{
				"request_id", requestid.FromRequest(r),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"ip", clientIP(r),
				"user_agent", r.UserAgent(),
				"latency", time.Since(start),
				"response_bytes", ww.BytesWritten(),
			}

			switch {
			case ww.Status() >= 500:
				logger.Errorw("request completed", fields...)
			case ww.Status() >= 400:
				logger.Warnw("request completed", fields...)
			case r.Method == http.MethodGet && r.URL.Path == "/status":
				logger.Debugw("request completed", fields...)
			default:
				logger.Infow("request completed", fields...)
			}
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
