package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// zapLogFormatter plugs zap into chi's RequestLogger. Query strings are never
// logged since /onboard carries the authorization code.
type zapLogFormatter struct {
	log *zap.Logger
}

func (f zapLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &zapLogEntry{log: f.log.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)}
}

type zapLogEntry struct {
	log *zap.Logger
}

func (e *zapLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.log.Debug("Request served",
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed))
}

func (e *zapLogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("Request panicked",
		zap.Any("panic", v),
		zap.ByteString("stack", stack))
}

// recoverer turns a handler panic into the generic 500 response.
func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			if entry := middleware.GetLogEntry(r); entry != nil {
				entry.Panic(rvr, debug.Stack())
			} else {
				h.log.Error("Request panicked", zap.Any("panic", rvr), zap.Stack("stack"))
			}
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
