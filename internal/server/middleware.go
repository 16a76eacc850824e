package server

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader carries the correlation ID on requests and responses.
const requestIDHeader = "X-Request-ID"

// requestID assigns each request a correlation ID unless the client sent
// one, and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
