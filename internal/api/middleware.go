// v0
// internal/api/middleware.go
package api

import (
	"log/slog"
	"net/http"
	"time"
)

// WrapWithLogging records one structured access log line per request.
func WrapWithLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.String("duration", time.Since(start).String()),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// slogRecoveryLogger adapts slog to gorilla/handlers' RecoveryHandlerLogger.
type slogRecoveryLogger struct {
	log *slog.Logger
}

func (l slogRecoveryLogger) Println(v ...interface{}) {
	l.log.Error("http_handler_panic", slog.Any("panic", v))
}
