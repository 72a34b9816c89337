package httpadapter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

func (rt *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	if rt.cfg.APIRateLimitRPS <= 0 {
		return next
	}
	burst := rt.cfg.APIRateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst)
	return rateLimitMiddleware(next, limiter, rt.recordRejected)
}

func (rt *Router) backpressure(next http.Handler) http.Handler {
	if rt.cfg.APIBackpressureMax <= 0 {
		return next
	}
	gate := backpressureMiddleware(next, rt.cfg.APIBackpressureMax, rt.cfg.BackpressureWait())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		gate.ServeHTTP(ww, r)
		if ww.Status() == http.StatusServiceUnavailable && ww.Header().Get(overloadHeader) != "" {
			rt.recordRejected("backpressure")
		}
	})
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func rateLimitMiddleware(next http.Handler, limiter *rate.Limiter, onReject func(string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeRateLimited(w, time.Second, onReject)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			writeRateLimited(w, delay, onReject)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, onReject func(string)) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	if onReject != nil {
		onReject("rate_limited")
	}
}

const overloadHeader = "X-Overloaded"

// backpressureMiddleware admits at most maxInFlight requests, waiting up to
// wait for a slot before shedding with 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	slots := semaphore.NewWeighted(int64(maxInFlight))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acquireCtx, cancel := context.WithTimeout(r.Context(), wait)
		err := slots.Acquire(acquireCtx, 1)
		cancel()
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			w.Header().Set(overloadHeader, "1")
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is busy, retry later"})
			return
		}
		defer slots.Release(1)

		next.ServeHTTP(w, r)
	})
}
