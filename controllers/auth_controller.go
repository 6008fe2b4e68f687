package controllers

import (
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HSouheill/commercive_backend/middleware"
	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/utils"
)

const (
	maxLoginAttempts = 5
	loginLockout     = 30 * time.Minute
)

type loginAttempt struct {
	count       int
	lastAttempt time.Time
}

// IssueTokenRequest asks for a token on behalf of an affiliate or a chat user.
type IssueTokenRequest struct {
	Role        string `json:"role" validate:"required,oneof=affiliate user"`
	UserID      string `json:"user_id" validate:"required"`
	Email       string `json:"email"`
	AffiliateID string `json:"affiliate_id" validate:"required_if=Role affiliate"`
}

type AuthController struct {
	tokens            *middleware.TokenService
	adminEmail        string
	adminPasswordHash []byte
	logger            *zap.Logger
	now               func() time.Time

	loginAttempts   map[string]*loginAttempt
	loginAttemptsMu sync.RWMutex
}

func NewAuthController(tokens *middleware.TokenService, adminEmail, adminPasswordHash string, logger *zap.Logger) *AuthController {
	return &AuthController{
		tokens:            tokens,
		adminEmail:        strings.ToLower(strings.TrimSpace(adminEmail)),
		adminPasswordHash: []byte(adminPasswordHash),
		logger:            logger,
		now:               time.Now,
		loginAttempts:     make(map[string]*loginAttempt),
	}
}

func (ac *AuthController) actions() map[string]actionHandler {
	return map[string]actionHandler{
		"auth/login":       {method: "POST", access: accessPublic, handle: ac.Login},
		"auth/issue-token": {method: "POST", access: accessAdmin, handle: ac.IssueToken},
	}
}

// Login exchanges the admin credentials for an access token.
func (ac *AuthController) Login(c echo.Context, req *actionRequest) (*actionResult, error) {
	var loginReq models.LoginRequest
	if err := req.Decode(&loginReq); err != nil {
		return nil, err
	}
	if err := validate(c, &loginReq); err != nil {
		return nil, err
	}

	email, err := utils.SanitizeEmail(loginReq.Email)
	if err != nil {
		return nil, models.ValidationError("email", "Invalid email format")
	}

	if ac.lockedOut(email) {
		return nil, &models.AppError{Kind: models.KindForbidden, Message: "Too many failed login attempts. Please try again later."}
	}

	if ac.adminEmail == "" || len(ac.adminPasswordHash) == 0 || email != ac.adminEmail ||
		bcrypt.CompareHashAndPassword(ac.adminPasswordHash, []byte(loginReq.Password)) != nil {
		ac.recordFailure(email)
		ac.logger.Warn("Failed login attempt", zap.String("email", email), zap.String("ip", c.RealIP()))
		return nil, models.Unauthorized("Invalid credentials")
	}
	ac.clearFailures(email)

	principal := models.Principal{UserID: "admin", Email: email, Role: models.RoleAdmin}
	token, err := ac.tokens.Generate(principal)
	if err != nil {
		return nil, err
	}

	ac.logger.Info("Admin logged in", zap.String("email", email))
	return okMessage("Login successful", map[string]interface{}{
		"token": token,
		"user":  principal,
	}), nil
}

// IssueToken lets an admin mint a token for an affiliate dashboard or a chat user.
func (ac *AuthController) IssueToken(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in IssueTokenRequest
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if err := validate(c, &in); err != nil {
		return nil, err
	}

	principal := models.Principal{UserID: in.UserID, Email: in.Email, Role: in.Role}
	if in.Role == models.RoleAffiliate {
		principal.AffiliateID = in.AffiliateID
	}
	token, err := ac.tokens.Generate(principal)
	if err != nil {
		return nil, err
	}

	ac.logger.Info("Token issued", zap.String("role", in.Role), zap.String("user_id", in.UserID), zap.String("issued_by", req.principal.Email))
	return created("Token issued", map[string]interface{}{
		"token": token,
		"user":  principal,
	}), nil
}

func (ac *AuthController) lockedOut(email string) bool {
	ac.loginAttemptsMu.RLock()
	defer ac.loginAttemptsMu.RUnlock()
	attempts, exists := ac.loginAttempts[email]
	return exists && attempts.count >= maxLoginAttempts && ac.now().Sub(attempts.lastAttempt) < loginLockout
}

func (ac *AuthController) recordFailure(email string) {
	ac.loginAttemptsMu.Lock()
	defer ac.loginAttemptsMu.Unlock()
	attempts, exists := ac.loginAttempts[email]
	if !exists || ac.now().Sub(attempts.lastAttempt) >= loginLockout {
		attempts = &loginAttempt{}
		ac.loginAttempts[email] = attempts
	}
	attempts.count++
	attempts.lastAttempt = ac.now()
}

func (ac *AuthController) clearFailures(email string) {
	ac.loginAttemptsMu.Lock()
	delete(ac.loginAttempts, email)
	ac.loginAttemptsMu.Unlock()
}
