package handlers

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/auth"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/ratelimit"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/usagelog"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/metrics"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// errUncacheableStatus marks handler responses outside 2xx/3xx so the
// compute path skips the cache write.
var errUncacheableStatus = errors.New("response status not cacheable")

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext retrieves the authenticated identity set by the gate.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	return identity, ok
}

// GateConfig holds the path sets and cache policy for the gating pipeline.
// Bypass and cacheable matching is exact-or-prefix only; no patterns.
type GateConfig struct {
	BypassPaths   []string
	CachePaths    []string
	CacheExcluded []string
	CacheTTL      time.Duration
	CacheEnabled  bool
}

// Gate is the request-gating pipeline: authentication, rate limiting,
// response caching and usage logging, applied in that order. Requests to
// bypassed infrastructure paths skip all gating.
type Gate struct {
	verifier auth.Verifier
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	usage    *usagelog.Logger
	cfg      GateConfig
}

func NewGate(verifier auth.Verifier, limiter *ratelimit.Limiter, c *cache.Cache, usage *usagelog.Logger, cfg GateConfig) *Gate {
	return &Gate{
		verifier: verifier,
		limiter:  limiter,
		cache:    c,
		usage:    usage,
		cfg:      cfg,
	}
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (g *Gate) bypassed(path string) bool {
	return matchesAny(path, g.cfg.BypassPaths)
}

// Authenticate validates the X-API-Key header and stores the resolved
// identity in the request context. It also records the usage log entry once
// the response has been served.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := g.verifier.Verify(r.Context(), r.Header.Get("X-API-Key"))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingKey):
				writeError(w, http.StatusUnauthorized, CodeAPIKeyMissing, "API key is required")
			case errors.Is(err, auth.ErrExpiredKey):
				writeError(w, http.StatusUnauthorized, CodeAPIKeyExpired, "API key has expired")
			case errors.Is(err, auth.ErrInvalidKey):
				writeError(w, http.StatusUnauthorized, CodeAPIKeyInvalid, "Invalid API key")
			default:
				log.Printf("credential store error: %v", err)
				writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable")
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		metrics.RequestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		g.logUsage(identity, r, rec.status)
	})
}

// RateLimit charges one request against the identity's current window.
// Rate-limit headers are written before dispatch so every response on the
// gated path carries them, cache hits included. When the counter store is
// unreachable the request is allowed through (fail-open) and the error is
// logged.
func (g *Gate) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		endpoint := r.Method + ":" + r.URL.Path
		res, err := g.limiter.Check(r.Context(), identity, endpoint)
		if err != nil {
			log.Printf("rate limit check failed, allowing request: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(res.Reset))

		if !res.Allowed {
			metrics.RateLimitExceededTotal.WithLabelValues(r.URL.Path).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(res.Reset))
			w.Header().Set("X-RateLimit-Window", strconv.Itoa(res.Window))
			writeErrorDetail(w, http.StatusTooManyRequests, CodeRateLimitExceeded,
				"Rate limit exceeded. Please try again later.",
				map[string]interface{}{
					"retry_after": res.Reset,
					"limit":       res.Limit,
					"window":      res.Window,
				})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cached serves idempotent reads on cacheable paths from the response cache
// and stores fresh successful responses. The 429 path never reaches here, so
// rejections are never cached.
func (g *Gate) Cached(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.cacheable(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.Key(r.URL.Path, r.URL.Query())

		entry, hit, err := g.cache.LookupOrCompute(r.Context(), key, g.cfg.CacheTTL, func(ctx context.Context) (*cache.Entry, error) {
			metrics.CacheMissTotal.WithLabelValues(r.URL.Path).Inc()
			w.Header().Set("X-Cache", "MISS")

			rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 400 {
				return nil, errUncacheableStatus
			}
			return &cache.Entry{
				Body:       rec.body.Bytes(),
				StatusCode: rec.status,
				Headers:    map[string]string{"Content-Type": rec.Header().Get("Content-Type")},
			}, nil
		})
		if err != nil {
			// The handler already wrote the response; the error only marked
			// it as not cacheable.
			return
		}
		if hit {
			metrics.CacheHitTotal.WithLabelValues(r.URL.Path).Inc()
			for name, value := range entry.Headers {
				w.Header().Set(name, value)
			}
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(entry.StatusCode)
			w.Write(entry.Body)
		}
		// On a miss the response was streamed through the capture writer.
	})
}

func (g *Gate) cacheable(r *http.Request) bool {
	if !g.cfg.CacheEnabled || r.Method != http.MethodGet {
		return false
	}
	path := r.URL.Path
	if g.bypassed(path) || matchesAny(path, g.cfg.CacheExcluded) {
		return false
	}
	return matchesAny(path, g.cfg.CachePaths)
}

func (g *Gate) logUsage(identity *auth.Identity, r *http.Request, status int) {
	entry := &models.UsageLog{
		APIKeyID:   identity.ID,
		Endpoint:   r.URL.Path,
		Method:     r.Method,
		StatusCode: status,
		CreatedAt:  time.Now().UTC(),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		entry.ClientIP = &host
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		entry.UserAgent = &ua
	}
	g.usage.Enqueue(entry)
}

// statusRecorder captures the response status for usage logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// captureWriter tees the response body so it can be cached after serving.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *captureWriter) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *captureWriter) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
