package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/albapepper/freshtrack/internal/api/handler"
	"github.com/albapepper/freshtrack/internal/api/respond"
)

// --------------------------------------------------------------------------
// Request logging middleware
// --------------------------------------------------------------------------

// LoggingMiddleware logs each request with status and duration, and adds an
// X-Process-Time header before the body is written.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(&timedWriter{WrapResponseWriter: ww, start: start}, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

type timedWriter struct {
	middleware.WrapResponseWriter
	start time.Time
	once  sync.Once
}

func (t *timedWriter) stamp() {
	t.once.Do(func() {
		elapsed := time.Since(t.start)
		t.Header().Set("X-Process-Time", fmt.Sprintf("%.2fms", float64(elapsed.Microseconds())/1000.0))
	})
}

func (t *timedWriter) WriteHeader(code int) {
	t.stamp()
	t.WrapResponseWriter.WriteHeader(code)
}

func (t *timedWriter) Write(b []byte) (int, error) {
	t.stamp()
	return t.WrapResponseWriter.Write(b)
}

// --------------------------------------------------------------------------
// Recipient resolution
// --------------------------------------------------------------------------

// RecipientMiddleware resolves the calling recipient from X-Recipient-ID,
// falling back to the configured single tenant.
func RecipientMiddleware(fallback uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := fallback
			if v := r.Header.Get(handler.RecipientHeader); v != "" {
				parsed, err := uuid.Parse(v)
				if err != nil {
					respond.WriteError(w, http.StatusBadRequest, "INVALID_RECIPIENT",
						handler.RecipientHeader+" must be a UUID")
					return
				}
				id = parsed
			}
			ctx := context.WithValue(r.Context(), handler.RecipientKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --------------------------------------------------------------------------
// Rate limiting middleware (IP-based token bucket)
// --------------------------------------------------------------------------

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPLimiter(requestsPerWindow int, window time.Duration) *ipLimiter {
	rps := float64(requestsPerWindow) / window.Seconds()
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    max(requestsPerWindow/2, 1),
	}
}

func (l *ipLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware returns middleware that rate-limits by client IP.
func RateLimitMiddleware(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newIPLimiter(requestsPerWindow, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.getLimiter(ip).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				respond.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
