package middleware

import (
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/iliyamo/tournament-registration/internal/config"
)

// maxLocalBuckets bounds the number of keys the in-process limiter tracks.
const maxLocalBuckets = 10000

// NewLocalLimiter is the in-process token bucket used when redis is not
// reachable.  Buckets live per instance, so with several replicas the
// effective limit is multiplied.  The least recently used bucket is
// dropped once maxLocalBuckets keys are tracked.
func NewLocalLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	buckets, err := lru.New(maxLocalBuckets)
	if err != nil {
		slog.Error("ratelimit: local limiter disabled", "error", err)
		return passThrough
	}
	tokens := cfg.RefillTokens
	if tokens < 1 {
		tokens = 1
	}
	burst := cfg.Capacity
	if burst < 1 {
		burst = 1
	}
	every := cfg.RefillInterval / time.Duration(tokens)
	limit := rate.Every(every)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			var lim *rate.Limiter
			if v, ok := buckets.Get(key); ok {
				lim = v.(*rate.Limiter)
			} else {
				fresh := rate.NewLimiter(limit, burst)
				// another request may have created the bucket meanwhile
				if prev, found, _ := buckets.PeekOrAdd(key, fresh); found {
					lim = prev.(*rate.Limiter)
				} else {
					lim = fresh
				}
			}

			allowed := lim.Allow()
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(burst))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(int(lim.Tokens())))
			if !allowed {
				if cfg.Debug {
					slog.Info("ratelimit: blocked locally", "key", key)
				}
				return tooManyRequests(c, every)
			}
			return next(c)
		}
	}
}
