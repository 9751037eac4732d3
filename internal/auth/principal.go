package auth

import "github.com/aeroframe-io/core/internal/domain"

// Principal is the authenticated actor recovered from the auth cache or
// by rehydration.
type Principal struct {
	UserID   string
	TenantID *string
	Role     domain.Role
}

// RequirementKind names the shape of an authorization check.
type RequirementKind int

const (
	PlatformAdminOnly RequirementKind = iota
	SelfOrTenantAdmin
	Authenticated
)

// Requirement is what a command handler asks authorize to check.
type Requirement struct {
	Kind           RequirementKind
	TargetUserID   string
	TargetTenantID *string
}

// Authorize is the RBAC decision function (spec.md §4.9). Its outcome
// depends only on (principal.role, principal.tenant_id, principal.user_id,
// requirement) — P6.
func Authorize(p Principal, req Requirement) bool {
	switch req.Kind {
	case PlatformAdminOnly:
		return p.Role == domain.RolePlatformAdmin
	case SelfOrTenantAdmin:
		if p.Role == domain.RolePlatformAdmin {
			return true
		}

		if p.UserID == req.TargetUserID {
			return true
		}

		if p.Role == domain.RoleTenantAdmin && p.TenantID != nil && req.TargetTenantID != nil && *p.TenantID == *req.TargetTenantID {
			return true
		}

		return false
	case Authenticated:
		return true
	default:
		return false
	}
}
