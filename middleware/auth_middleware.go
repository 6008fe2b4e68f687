// middleware/auth_middleware.go
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/commercive_backend/models"
)

// RequireRole checks if the authenticated caller has one of the allowed roles
func RequireRole(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if p == nil {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Code:    models.KindUnauthorized,
					Message: "Authentication required",
				})
			}

			for _, role := range allowedRoles {
				if p.Role == role {
					return next(c)
				}
			}

			c.Logger().Warnf("Access denied for role: %s, allowed roles: %v", p.Role, allowedRoles)
			return c.JSON(http.StatusForbidden, models.Response{
				Status:  http.StatusForbidden,
				Code:    models.KindForbidden,
				Message: "Access denied for your role",
			})
		}
	}
}
