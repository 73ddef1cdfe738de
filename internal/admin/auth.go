package admin

import (
	"math"
	"net/http"
	"sync"
	"time"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
)

const apiKeyHeader = "x-api-key"

// keyAuthenticator validates API keys from the request header and applies
// a per-key token-bucket rate limit.
type keyAuthenticator struct {
	logger    core.ILogger
	validKeys map[string]bool
	rateLimit int

	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

func newKeyAuthenticator(apiKeys []config.Secret, rateLimit int, logger core.ILogger) *keyAuthenticator {
	valid := make(map[string]bool, len(apiKeys))
	for _, key := range apiKeys {
		if key != "" {
			valid[string(key)] = true
		}
	}
	return &keyAuthenticator{
		logger:    logger,
		validKeys: valid,
		rateLimit: rateLimit,
		limiters:  make(map[string]*rateLimiter),
	}
}

// wrap rejects requests without a valid key before they reach the handler.
// When no keys are configured the endpoint is open.
func (a *keyAuthenticator) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.validKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing API key")
			return
		}
		if !a.validKeys[key] {
			a.logger.Warn("Rejected request with invalid API key",
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid API key")
			return
		}
		if !a.allow(key) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *keyAuthenticator) allow(key string) bool {
	if a.rateLimit <= 0 {
		return true
	}
	a.mu.Lock()
	rl, ok := a.limiters[key]
	if !ok {
		rl = &rateLimiter{
			tokens:     float64(a.rateLimit),
			maxTokens:  float64(a.rateLimit),
			lastRefill: time.Now(),
		}
		a.limiters[key] = rl
	}
	a.mu.Unlock()
	return rl.allowRequest()
}

// rateLimiter is a token bucket refilled at maxTokens per second
type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	lastRefill time.Time
}

func (rl *rateLimiter) allowRequest() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	rl.tokens = math.Min(rl.maxTokens, rl.tokens+elapsed.Seconds()*rl.maxTokens)
	rl.lastRefill = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
