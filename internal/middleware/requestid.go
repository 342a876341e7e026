package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID assigns a request id when the client did not send one, and
// echoes it back so error envelopes can be correlated with logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
