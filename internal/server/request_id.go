package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"cliptide/internal/observability/logging"
)

type idGenerator func() string

// requestIDMiddleware tags every request with an id, honoring one supplied
// by the edge proxy, and echoes it back on the response.
func requestIDMiddleware(generator idGenerator, next http.Handler) http.Handler {
	if generator == nil {
		generator = uuid.NewString
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = generator()
		}
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
