package workerpool

import (
	"errors"
	"net/http"
)

// Middleware serves each request on a pool worker, so the pool size bounds
// the number of requests handled at once. Requests wait for an idle worker.
// If the pool is closing the request is served inline.
func Middleware(pool *Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := make(chan struct{})
			err := pool.Submit(r.Context(), func() {
				defer close(done)
				next.ServeHTTP(w, r)
			})
			switch {
			case err == nil:
				<-done
			case errors.Is(err, ErrClosed):
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "request cancelled while waiting for a worker", http.StatusServiceUnavailable)
			}
		})
	}
}
