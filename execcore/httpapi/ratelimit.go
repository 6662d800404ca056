package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimit throttles the admin surface (breaker overrides, DLQ replay) so
// a misbehaving operator script can't hammer it, grounded on
// gateway/middleware/ratelimit.go's token-bucket-per-route shape, narrowed
// here to a single shared bucket since the whole /admin group is one
// trust boundary.
type rateLimit struct {
	limiter *rate.Limiter
}

func newRateLimit(ratePerSecond float64, burst int) *rateLimit {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &rateLimit{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (r *rateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}
