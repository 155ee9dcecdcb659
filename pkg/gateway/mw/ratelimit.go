package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/auth"
	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/metrics"
	"github.com/anay-go/anay/pkg/gateway/ratelimit"
)

// RateLimit applies the per-principal request limits. Live socket upgrades
// are capped separately by the session handler.
func RateLimit(cfg config.Config, limiter *ratelimit.Limiter, m *metrics.Metrics, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := ratelimit.RequestKey(r, cfg.TrustProxyHeaders)
		dec := limiter.AcquireRequest(key, time.Now())
		if !dec.Allowed {
			m.RecordRateLimitHit("request")
			reqID, _ := RequestIDFrom(r.Context())
			var retryAfter *int
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
				v := dec.RetryAfter
				retryAfter = &v
			}
			writeJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:       core.ErrRateLimit,
				Message:    "rate limit exceeded",
				RequestID:  reqID,
				RetryAfter: retryAfter,
			})
			return
		}
		if auth.IsWebSocketUpgrade(r) {
			dec.Permit.Release()
		} else {
			defer dec.Permit.Release()
		}

		next.ServeHTTP(w, r)
	})
}
