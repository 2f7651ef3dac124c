package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"exchangeflow/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags the request context with the caller's request id, or a
// fresh one, so every log line of the request carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}
