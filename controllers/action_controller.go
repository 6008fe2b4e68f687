package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/middleware"
	"github.com/HSouheill/commercive_backend/models"
)

const maxBodyBytes = 10 << 20

// access is the caller requirement of an action.
type access int

const (
	accessPublic access = iota
	// accessAffiliate admits admins and affiliates; affiliates are confined to their own id.
	accessAffiliate
	accessAdmin
)

type actionFunc func(c echo.Context, req *actionRequest) (*actionResult, error)

type actionHandler struct {
	method string // empty accepts GET and POST
	access access
	handle actionFunc
}

// actionResult is the successful outcome of an action.
type actionResult struct {
	Status  int
	Message string
	Data    interface{}
}

func ok(data interface{}) *actionResult {
	return &actionResult{Status: http.StatusOK, Data: data}
}

func okMessage(message string, data interface{}) *actionResult {
	return &actionResult{Status: http.StatusOK, Message: message, Data: data}
}

func created(message string, data interface{}) *actionResult {
	return &actionResult{Status: http.StatusCreated, Message: message, Data: data}
}

// actionAliases maps legacy action names onto their canonical entry.
var actionAliases = map[string]string{
	"":             "health",
	"ping":         "health",
	"leads/list":   "admin/leads",
	"leads/submit": "affiliate/submit-lead",
}

// ActionController dispatches /api/v1 requests by their action parameter.
type ActionController struct {
	actions map[string]actionHandler
	logger  *zap.Logger
	started time.Time
}

// NewActionController builds the action table from the domain controllers.
func NewActionController(logger *zap.Logger, auth *AuthController, crm *CRMController, leads *LeadController, chat *ChatController) *ActionController {
	ac := &ActionController{
		actions: make(map[string]actionHandler),
		logger:  logger,
		started: time.Now(),
	}
	ac.register(map[string]actionHandler{
		"health": {access: accessPublic, handle: ac.health},
	})
	ac.register(auth.actions())
	ac.register(crm.actions())
	ac.register(leads.actions())
	ac.register(chat.actions())
	return ac
}

func (ac *ActionController) register(table map[string]actionHandler) {
	for name, h := range table {
		if _, dup := ac.actions[name]; dup {
			panic("duplicate action " + name)
		}
		ac.actions[name] = h
	}
}

// Actions lists the registered action names.
func (ac *ActionController) Actions() []string {
	names := make([]string, 0, len(ac.actions))
	for name := range ac.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle serves GET /api/v1?action=… and POST /api/v1.
func (ac *ActionController) Handle(c echo.Context) error {
	req, err := parseActionRequest(c)
	if err != nil {
		return ac.fail(c, "", err)
	}

	name := req.action
	if alias, ok := actionAliases[name]; ok {
		name = alias
	}
	h, ok := ac.actions[name]
	if !ok {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Code:    models.KindNotFound,
			Message: "Unknown action",
			Data: map[string]string{
				"action": req.action,
				"hint":   "Use ?action=health to see available actions",
			},
		})
	}

	if h.method != "" && h.method != c.Request().Method {
		return c.JSON(http.StatusMethodNotAllowed, models.Response{
			Status:  http.StatusMethodNotAllowed,
			Message: "Action " + name + " requires " + h.method,
		})
	}

	if err := authorize(h.access, req.principal); err != nil {
		return ac.fail(c, name, err)
	}

	res, err := h.handle(c, req)
	if err != nil {
		return ac.fail(c, name, err)
	}
	return c.JSON(res.Status, models.Response{
		Status:  res.Status,
		Success: true,
		Message: res.Message,
		Data:    res.Data,
	})
}

func authorize(level access, p *models.Principal) error {
	switch level {
	case accessPublic:
		return nil
	case accessAdmin:
		if p == nil {
			return models.Unauthorized("Authentication required")
		}
		if !p.IsAdmin() {
			return models.Forbidden("Admin access required")
		}
	case accessAffiliate:
		if p == nil {
			return models.Unauthorized("Authentication required")
		}
		if !p.IsAdmin() && p.Role != models.RoleAffiliate {
			return models.Forbidden("Affiliate access required")
		}
	}
	return nil
}

// fail writes err as an error envelope. Errors outside the taxonomy are logged and masked.
func (ac *ActionController) fail(c echo.Context, action string, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		ac.logger.Error("Unhandled action error", zap.String("action", action), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Code:    models.KindInternal,
			Message: "Internal server error",
		})
	}

	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		ac.logger.Error("Action failed", zap.String("action", action), zap.Error(err))
	} else {
		ac.logger.Debug("Action rejected", zap.String("action", action), zap.String("code", string(appErr.Kind)), zap.String("message", appErr.Message))
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Code:    appErr.Kind,
		Field:   appErr.Field,
		Message: appErr.Message,
	})
}

func (ac *ActionController) health(c echo.Context, _ *actionRequest) (*actionResult, error) {
	return ok(map[string]interface{}{
		"status":            "healthy",
		"service":           "Commercive Backend",
		"timestamp":         time.Now().Unix(),
		"uptime_seconds":    int64(time.Since(ac.started).Seconds()),
		"available_actions": ac.Actions(),
	}), nil
}

// actionRequest carries the merged query and body parameters of one call.
type actionRequest struct {
	action    string
	query     map[string][]string
	body      map[string]json.RawMessage
	raw       []byte
	principal *models.Principal
}

func parseActionRequest(c echo.Context) (*actionRequest, error) {
	req := &actionRequest{
		query:     c.QueryParams(),
		principal: middleware.PrincipalFrom(c),
	}

	if c.Request().Body != nil && c.Request().Method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
		if err != nil {
			return nil, models.ValidationError("body", "Unable to read request body")
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &req.body); err != nil {
				return nil, models.ValidationError("body", "Invalid JSON body")
			}
			req.raw = raw
		}
	}

	req.action = strings.TrimSpace(c.QueryParam("action"))
	if req.action == "" {
		req.action = req.String("action")
	}
	return req, nil
}

// String returns a body field, falling back to the query string.
func (r *actionRequest) String(name string) string {
	if v, ok := r.body[name]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		trimmed := strings.TrimSpace(string(v))
		if trimmed != "null" {
			return trimmed
		}
	}
	if vals, ok := r.query[name]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// Int parses an optional positive count such as a limit.
func (r *actionRequest) Int(name string, def int64) (int64, error) {
	s := r.String(name)
	if s == "" {
		return def, nil
	}
	var n int64
	if err := json.Unmarshal([]byte(s), &n); err != nil || n < 0 {
		return 0, models.ValidationError(name, name+" must be a non-negative integer")
	}
	return n, nil
}

// Bool accepts true/false and 1/0.
func (r *actionRequest) Bool(name string) bool {
	switch strings.ToLower(r.String(name)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Decode unmarshals the JSON body into v.
func (r *actionRequest) Decode(v interface{}) error {
	if len(r.raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.raw, v); err != nil {
		return models.ValidationError("body", "Invalid request body: "+err.Error())
	}
	return nil
}

// Affiliate resolves the affiliate the caller may act on. Admins act on the named
// affiliate; affiliates only on their own and default to it when none is named.
func (r *actionRequest) Affiliate(requested string) (string, error) {
	p := r.principal
	if p == nil || p.IsAdmin() {
		return requested, nil
	}
	if p.Role == models.RoleAffiliate {
		if requested != "" && requested != p.AffiliateID {
			return "", models.Forbidden("Affiliates may only access their own records")
		}
		return p.AffiliateID, nil
	}
	return "", models.Forbidden("Affiliate access required")
}

// isAdmin reports whether the caller is staff.
func (r *actionRequest) isAdmin() bool {
	return r.principal.IsAdmin()
}
