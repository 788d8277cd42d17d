package server

import (
	"log/slog"
	"net/http"
	"time"

	chiv1 "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mynextid/sod-zk/common"
)

// loggerMiddleware logs one line per request. Server errors log at error
// level, client errors at warn.
func loggerMiddleware(logger common.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiv1.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				args := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent(),
					"request_id", middleware.GetReqID(r.Context()),
				}
				switch requestLevel(status) {
				case slog.LevelError:
					logger.Error("request", args...)
				case slog.LevelWarn:
					logger.Warn("request", args...)
				default:
					logger.Info("request", args...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requestLevel returns the log level loggerMiddleware uses for status.
func requestLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
