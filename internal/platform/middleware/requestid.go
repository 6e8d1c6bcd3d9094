// Package middleware provides the HTTP middleware chain: request identity,
// request-scoped time, logging, recovery, tenant resolution, rate limiting,
// and metrics.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"planlens/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a correlation ID, honoring one supplied by
// a trusted proxy. The ID is echoed in the response and carried in the
// context for logs and audit events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
