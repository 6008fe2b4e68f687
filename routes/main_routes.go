package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/commercive_backend/controllers"
	"github.com/HSouheill/commercive_backend/middleware"
	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/websocket"
)

// peekLimit bounds how much of a POST body is read to find its action.
const peekLimit = 1 << 20

// SetupRoutes registers the action endpoint, the admin event stream and the health check.
func SetupRoutes(e *echo.Echo, actions *controllers.ActionController, hub *websocket.Hub, tokens *middleware.TokenService, limiter *middleware.RateLimiter) {
	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	api := e.Group("/api/v1")
	api.Use(middleware.OptionalAuth(tokens))
	api.Use(limiter.RateLimit(ActionName))

	api.GET("", actions.Handle)
	api.POST("", actions.Handle)

	// Admin event stream; browsers pass the token as a query parameter
	api.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, middleware.PrincipalFrom(c).UserID)
	}, middleware.RequireRole(models.RoleAdmin))
}

// ActionName reads the action of a request without consuming its body.
func ActionName(c echo.Context) string {
	if action := c.QueryParam("action"); action != "" {
		return action
	}
	req := c.Request()
	if req.Method != http.MethodPost || req.Body == nil {
		return c.Path()
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, peekLimit))
	rest := req.Body
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), rest))
	if err != nil {
		return ""
	}

	var peek struct {
		Action string `json:"action"`
	}
	if json.Unmarshal(raw, &peek) != nil {
		return ""
	}
	return peek.Action
}
