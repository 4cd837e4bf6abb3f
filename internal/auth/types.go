package auth

import (
	"strings"
	"time"
)

// Role is the single coarse-grained role carried by every user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
	RolePending  Role = "pending"
)

// ParseRole maps a stored role string onto the enumerated set. Anything
// absent or malformed resolves to the least-privileged role, never to an
// error that could default to allow.
func ParseRole(raw string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStandard:
		return RoleStandard
	default:
		return RolePending
	}
}

// Account status values.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Capability keys checked by the gate.
const (
	CapManageRoles     = "roles.manage"
	CapDeleteRecords   = "records.delete"
	CapManageInvites   = "invites.manage"
	CapAssistSessions  = "sessions.assist"
	CapViewAudit       = "audit.view"
	CapManageWorkshops = "workshops.manage"
	CapManageClients   = "clients.manage"
	CapFinalizeMinutes = "minutes.finalize"
)

// BuiltinGrants maps each role onto the capabilities it carries implicitly.
// Explicit per-user grants from the store are unioned on top.
var BuiltinGrants = map[Role][]string{
	RoleAdmin: {
		CapManageRoles,
		CapDeleteRecords,
		CapManageInvites,
		CapAssistSessions,
		CapViewAudit,
		CapManageWorkshops,
		CapManageClients,
		CapFinalizeMinutes,
	},
	RoleStandard: {
		CapManageClients,
		CapFinalizeMinutes,
	},
	RolePending: {},
}

// User is an account operating inside one workshop (tenant).
type User struct {
	ID           string    `json:"id"`
	WorkshopID   string    `json:"workshop_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a persisted single-use refresh credential.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
