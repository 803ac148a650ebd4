package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/puzzlearena/arena-api/internal/pkg/metrics"
	"github.com/puzzlearena/arena-api/internal/pkg/response"
)

// RateLimit implements a fixed-window rate limiter using Redis INCR/EXPIRE,
// keyed by client IP. Fail-open when Redis is unavailable so the API stays up.
func RateLimit(client *redis.Client, maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + getClientIP(r)

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				log.Warn().Err(err).Msg("Rate limiter Redis error, failing open")
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				client.Expire(r.Context(), key, window)
			}

			if count > int64(maxRequests) {
				metrics.RateLimitBlockedTotal.WithLabelValues(r.URL.Path).Inc()
				ttl, _ := client.TTL(r.Context(), key).Result()
				response.TooManyRequests(w, map[string]string{
					"retry_after_seconds": strconv.Itoa(int(ttl.Seconds())),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
