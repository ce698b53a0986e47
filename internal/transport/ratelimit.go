package transport

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter combines a global limit with per-client limits keyed by
// remote address.
type RateLimiter struct {
	global  *rate.Limiter
	clients map[string]*rate.Limiter
	mu      sync.RWMutex

	perClient float64
	burst     int
}

// NewRateLimiter allows globalPerSecond requests overall and
// clientPerSecond per remote address, each with the given burst.
func NewRateLimiter(globalPerSecond, clientPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		global:    rate.NewLimiter(rate.Limit(globalPerSecond), burst),
		clients:   make(map[string]*rate.Limiter),
		perClient: clientPerSecond,
		burst:     burst,
	}
}

// Allow reports whether a request from clientID may proceed.
func (rl *RateLimiter) Allow(clientID string) bool {
	if !rl.global.Allow() {
		return false
	}
	return rl.clientLimiter(clientID).Allow()
}

func (rl *RateLimiter) clientLimiter(clientID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.clients[clientID]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok := rl.clients[clientID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(rl.perClient), rl.burst)
	rl.clients[clientID] = limiter
	return limiter
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientAddr(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
