package middleware

import (
	"context"
	"net/http"
	"time"
)

func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}

// LongRunning bounds a slow route without buffering its response. The
// connection deadlines are moved out to maxDuration so the server-wide
// write timeout does not cut off a response that is still being produced.
func LongRunning(maxDuration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			deadline := time.Now().Add(maxDuration)
			_ = rc.SetWriteDeadline(deadline)
			_ = rc.SetReadDeadline(deadline)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
