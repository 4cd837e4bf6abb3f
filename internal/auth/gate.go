package auth

// Principal is the resolved caller of one request: identity, role, account
// status and the capability set derived from role plus explicit grants. It is
// built per request and never cached across requests.
type Principal struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	DisplayName  string          `json:"display_name"`
	Role         Role            `json:"role"`
	Status       string          `json:"status"`
	Capabilities map[string]bool `json:"capabilities"`
}

// NewPrincipal builds a principal from a user record and explicit grants.
func NewPrincipal(user *User, grants []string) Principal {
	role := ParseRole(string(user.Role))
	caps := make(map[string]bool, len(BuiltinGrants[role])+len(grants))
	for _, key := range BuiltinGrants[role] {
		caps[key] = true
	}
	for _, key := range grants {
		if key != "" {
			caps[key] = true
		}
	}
	return Principal{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         role,
		Status:       user.Status,
		Capabilities: caps,
	}
}

// HasCapability reports whether the principal carries the capability.
func (p Principal) HasCapability(key string) bool {
	return p.Capabilities[key]
}

// gatekeeping shared by every check: a zero principal is unauthenticated, a
// pending account is unauthenticated for gated (mutating) operations, and a
// suspended account is always denied.
func (p Principal) gateable() error {
	if p.ID == "" {
		return ErrUnauthenticated
	}
	switch p.Status {
	case StatusActive:
		return nil
	case StatusPending:
		return ErrUnauthenticated
	default:
		return ErrForbidden
	}
}

// RequireRole passes the principal through if its role is in the allowed set.
func RequireRole(p Principal, allowed ...Role) error {
	if err := p.gateable(); err != nil {
		return err
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequirePermission checks membership of the capability in the principal's
// resolved set.
func RequirePermission(p Principal, capability string) error {
	if err := p.gateable(); err != nil {
		return err
	}
	if !p.HasCapability(capability) {
		return ErrForbidden
	}
	return nil
}

// RequireOwnershipOrRole passes if the principal owns the resource or holds
// one of the allowed roles. Used for self-service actions such as ending
// one's own assistance session.
func RequireOwnershipOrRole(p Principal, resourceOwnerID string, allowed ...Role) error {
	if err := p.gateable(); err != nil {
		return err
	}
	if resourceOwnerID != "" && p.ID == resourceOwnerID {
		return nil
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}
