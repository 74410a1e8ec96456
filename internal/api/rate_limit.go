package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string, cost int64) (ratelimit.Decision, error)
}

// convertCostUnit is the upload size charged one extra token on
// /v1/convert, which decodes and traces inline.
const convertCostUnit = 1 << 20

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		route := routeLabel(r.URL.Path)
		subject := s.callerID(r) + ":" + route
		cost := requestCost(r)

		decision, err := s.rateLimiter.Allow(r.Context(), subject, cost)
		if err != nil {
			s.logger.Printf("rate limiter check failed subject=%s err=%v", subject, err)
			next.ServeHTTP(w, r)
			return
		}
		s.metrics.rateLimitCost.Observe(float64(decision.Cost))

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		w.Header().Set("X-RateLimit-Cost", strconv.FormatInt(decision.Cost, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(1, int(decision.RetryAfter.Round(time.Second).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(route).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

func (s *Server) callerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader)); id != "" {
		return id
	}
	return "anonymous"
}

func shouldRateLimit(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/v1/")
}

// requestCost is one token, plus one per started MiB of a conversion upload.
// An unknown length is charged as the largest accepted upload.
func requestCost(r *http.Request) int64 {
	if routeLabel(r.URL.Path) != "/v1/convert" {
		return 1
	}
	size := r.ContentLength
	if size < 0 || size > raster.MaxUploadBytes {
		size = raster.MaxUploadBytes
	}
	return 1 + (size+convertCostUnit-1)/convertCostUnit
}
