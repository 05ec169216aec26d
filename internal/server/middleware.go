package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SwapnilGautama/HaloQuality/internal/logger"
)

type ctxKey struct{}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestID tags each request with an id, echoed in X-Request-ID and
// attached to every log line written while serving it.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		log := s.log.With(logger.String("request_id", id))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, log)))

		log.Debug("Request served",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("elapsed", time.Since(start)),
		)
	})
}

// logFor returns the request-scoped logger, or fallback outside a request.
func logFor(r *http.Request, fallback logger.Logger) logger.Logger {
	if l, ok := r.Context().Value(ctxKey{}).(logger.Logger); ok {
		return l
	}
	return fallback
}
