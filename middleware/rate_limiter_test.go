package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimitPerAction(t *testing.T) {
	limiter := NewRateLimiter()
	limiter.SetActionLimit("auth/login", rate.Every(time.Hour), 2)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	e := echo.New()
	handler := limiter.RateLimit(func(c echo.Context) string {
		return c.QueryParam("action")
	})(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	serve := func(action, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1?action="+action, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve("auth/login", "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, serve("auth/login", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, serve("auth/login", "10.0.0.1"))

	// the IP stays blocked for every action until the block expires
	assert.Equal(t, http.StatusTooManyRequests, serve("health", "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, serve("auth/login", "10.0.0.2"))

	now = now.Add(limiter.blockDuration + time.Second)
	assert.Equal(t, http.StatusNoContent, serve("health", "10.0.0.1"))
}
