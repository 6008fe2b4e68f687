package models

// Roles carried in access tokens.
const (
	RoleAdmin     = "admin"
	RoleAffiliate = "affiliate"
	RoleUser      = "user"
)

// Principal is the authenticated caller of an action.
type Principal struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AffiliateID string `json:"affiliate_id,omitempty"`
}

// IsAdmin reports whether the caller has staff access.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
