package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/basket-api/internal/common"
)

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(*http.Request) string

// ByClientIP buckets requests per caller address, counting reads and writes separately.
func ByClientIP(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read:" + common.ClientIP(r)
	default:
		return "write:" + common.ClientIP(r)
	}
}

// Guard rejects requests over the limit with 429. Limiter failures let the request through.
type Guard struct {
	Limiter Limiter
	Key     KeyFunc
	OnError func(error)
}

func (g Guard) Middleware(next http.Handler) http.Handler {
	if g.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := g.Limiter.Allow(r.Context(), g.Key(r))
		if err != nil {
			if g.OnError != nil {
				g.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(max(decision.Limit, 0)))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(time.Until(decision.ResetAt).Round(time.Second)/time.Second), 1)
		h.Set("Retry-After", strconv.Itoa(retryAfter))
		common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded",
			map[string]any{"retryAfterSeconds": retryAfter})
	})
}
