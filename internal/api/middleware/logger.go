package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger emits one http_request entry per request. It reads the
// request id set by chi's RequestID middleware.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.L()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path = path + "?" + r.URL.RawQuery
			}

			fields := []zap.Field{
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", path),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", clientIP(r)),
				zap.String("user_agent", r.UserAgent()),
			}

			switch {
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		})
	}
}
