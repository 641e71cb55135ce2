package middleware

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/google/uuid"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, reusing a well-formed incoming
// X-Request-ID and generating a UUID otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
