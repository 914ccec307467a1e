package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	bucketCapacity     = 30
	refillInterval     = 2 * time.Second
	retryAfterSeconds  = 2
	cleanupInterval    = 5 * time.Minute
	bucketStaleTimeout = 10 * time.Minute
)

// bucket tracks remaining tokens for one client identifier.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// bucketLimiter implements per-identifier token bucket admission with
// lazy refill: tokens are added as floor(elapsed/interval) on each
// check, and lastRefill only advances when at least one token was
// granted, so partial intervals keep accruing. Cleanup of stale
// entries happens inline during check() calls.
type bucketLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time

	// now is swappable for tests.
	now func() time.Time
}

func newBucketLimiter() *bucketLimiter {
	return &bucketLimiter{
		buckets:     make(map[string]*bucket),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// check consumes one token for identifier if available.
// Returns (true, 0) when admitted, (false, retry-after seconds) when not.
func (rl *bucketLimiter) check(identifier string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if now.Sub(rl.lastCleanup) > cleanupInterval {
		for k, b := range rl.buckets {
			if now.Sub(b.lastRefill) > bucketStaleTimeout {
				delete(rl.buckets, k)
			}
		}
		rl.lastCleanup = now
	}

	b, exists := rl.buckets[identifier]
	if !exists {
		b = &bucket{tokens: bucketCapacity, lastRefill: now}
		rl.buckets[identifier] = b
	} else {
		refill := int(now.Sub(b.lastRefill) / refillInterval)
		if refill > 0 {
			b.tokens = min(b.tokens+refill, bucketCapacity)
			b.lastRefill = now
		}
	}

	if b.tokens <= 0 {
		return false, retryAfterSeconds
	}
	b.tokens--
	return true, 0
}

// rateLimitMiddleware limits requests per client identifier.
// Rejected requests get a 429 with a Retry-After header.
func rateLimitMiddleware(rl *bucketLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientIP(r, trustProxy)
			allowed, retryAfter := rl.check(id)
			if !allowed {
				logger.Warn("rate limit exceeded",
					"identifier", id,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again shortly.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client identifier from the request.
//
// When trustProxy is true, checks X-Real-IP first, then the first entry
// of X-Forwarded-For. Header values are validated with net.ParseIP to
// keep non-IP strings out of limiter keys. When no address can be
// determined the stable placeholder "unknown" is used, which pools all
// unidentifiable clients into a single bucket.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
