// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/commercive_backend/models"
)

const principalKey = "principal"

// JwtCustomClaims for JWT token
type JwtCustomClaims struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AffiliateID string `json:"affiliateId,omitempty"`
	jwt.StandardClaims
}

// TokenService signs and verifies access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Generate issues a signed token for p.
func (s *TokenService) Generate(p models.Principal) (string, error) {
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID:      p.UserID,
		Email:       p.Email,
		Role:        p.Role,
		AffiliateID: p.AffiliateID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = now.Add(s.ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a token and returns its principal.
func (s *TokenService) Parse(tokenString string) (*models.Principal, error) {
	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	switch claims.Role {
	case models.RoleAdmin, models.RoleAffiliate, models.RoleUser:
	default:
		return nil, errors.New("token carries an unknown role")
	}
	if claims.Role == models.RoleAffiliate && claims.AffiliateID == "" {
		return nil, errors.New("affiliate token without affiliate id")
	}

	return &models.Principal{
		UserID:      claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		AffiliateID: claims.AffiliateID,
	}, nil
}

// OptionalAuth attaches the caller's principal when a bearer token (or a token
// query parameter) is present. Anonymous requests pass through; invalid tokens are rejected.
func OptionalAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return next(c)
			}

			p, err := tokens.Parse(raw)
			if err != nil {
				c.Logger().Warnf("JWT middleware error: %v", err)
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Code:    models.KindUnauthorized,
					Message: "Invalid or expired token",
				})
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return c.QueryParam("token")
}

// PrincipalFrom returns the authenticated caller, or nil for anonymous requests.
func PrincipalFrom(c echo.Context) *models.Principal {
	p, _ := c.Get(principalKey).(*models.Principal)
	return p
}
