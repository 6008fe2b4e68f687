// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/HSouheill/commercive_backend/models"
)

type limitRule struct {
	limit rate.Limit
	burst int
}

// RateLimiter throttles callers per IP and action. An IP that exceeds its
// budget is blocked for blockDuration.
type RateLimiter struct {
	limiters      map[string]*rate.Limiter
	blockedIPs    map[string]time.Time
	mu            sync.Mutex
	defaultRule   limitRule
	actionRules   map[string]limitRule
	blockDuration time.Duration
	now           func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		blockedIPs:    make(map[string]time.Time),
		defaultRule:   limitRule{limit: rate.Every(100 * time.Millisecond), burst: 20},
		blockDuration: 5 * time.Minute,
		now:           time.Now,
		actionRules: map[string]limitRule{
			// Login: strict to prevent brute force attacks
			"auth/login": {limit: rate.Every(2 * time.Second), burst: 5},
			// Public form and chat endpoints
			"affiliate/submit-lead": {limit: rate.Every(2 * time.Second), burst: 5},
			"leads/submit":          {limit: rate.Every(2 * time.Second), burst: 5},
			"chat/send":             {limit: rate.Every(time.Second), burst: 10},
			// Bulk import carries large payloads
			"crm/orders/import": {limit: rate.Every(5 * time.Second), burst: 2},
		},
	}
}

// SetActionLimit overrides the budget of one action.
func (r *RateLimiter) SetActionLimit(action string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actionRules[action] = limitRule{limit: limit, burst: burst}
}

// Cleanup drops expired blocks until stop is closed.
func (r *RateLimiter) Cleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for ip, blockUntil := range r.blockedIPs {
				if now.After(blockUntil) {
					delete(r.blockedIPs, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

// RateLimit keys the budget by the action resolved by actionOf.
func (r *RateLimiter) RateLimit(actionOf func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			action := actionOf(c)
			now := r.now()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if now.Before(blockUntil) {
					r.mu.Unlock()
					return tooManyRequests(c, "IP address blocked due to too many requests", blockUntil)
				}
				delete(r.blockedIPs, ip)
			}

			rule, ok := r.actionRules[action]
			if !ok {
				rule = r.defaultRule
			}
			key := ip + "|" + action
			limiter, exists := r.limiters[key]
			if !exists {
				limiter = rate.NewLimiter(rule.limit, rule.burst)
				r.limiters[key] = limiter
			}

			if !limiter.AllowN(now, 1) {
				blockUntil := now.Add(r.blockDuration)
				r.blockedIPs[ip] = blockUntil
				r.mu.Unlock()
				return tooManyRequests(c, "Too many requests", blockUntil)
			}
			r.mu.Unlock()

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, message string, retryAfter time.Time) error {
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Status:  http.StatusTooManyRequests,
		Message: message,
		Data:    map[string]string{"retryAfter": retryAfter.Format(time.RFC3339)},
	})
}
