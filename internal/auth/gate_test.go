package auth

import (
	"errors"
	"testing"
)

func activeUser(role Role) *User {
	return &User{ID: "u1", Email: "u@x.test", DisplayName: "U", Role: role, Status: StatusActive}
}

func TestParseRoleMalformedDefaultsToPending(t *testing.T) {
	cases := map[string]Role{
		"admin":     RoleAdmin,
		" ADMIN ":   RoleAdmin,
		"standard":  RoleStandard,
		"pending":   RolePending,
		"":          RolePending,
		"superuser": RolePending,
		"Standard ": RoleStandard,
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestRequireRoleOutsideSet(t *testing.T) {
	p := NewPrincipal(activeUser(RoleStandard), nil)
	if err := RequireRole(p, RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := RequireRole(p, RoleAdmin, RoleStandard); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestGateRejectsZeroPrincipal(t *testing.T) {
	if err := RequirePermission(Principal{}, CapViewAudit); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGateTreatsPendingAsUnauthenticated(t *testing.T) {
	u := activeUser(RoleAdmin)
	u.Status = StatusPending
	p := NewPrincipal(u, nil)
	if err := RequirePermission(p, CapManageRoles); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for pending account, got %v", err)
	}
}

func TestGateDeniesSuspended(t *testing.T) {
	u := activeUser(RoleAdmin)
	u.Status = StatusSuspended
	p := NewPrincipal(u, nil)
	if err := RequireRole(p, RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for suspended account, got %v", err)
	}
}

func TestCapabilityUnionOfRoleAndGrants(t *testing.T) {
	p := NewPrincipal(activeUser(RoleStandard), []string{CapViewAudit, ""})
	if !p.HasCapability(CapManageClients) {
		t.Fatal("standard role must carry clients.manage")
	}
	if !p.HasCapability(CapViewAudit) {
		t.Fatal("explicit grant must be honored")
	}
	if p.HasCapability(CapManageRoles) {
		t.Fatal("standard role must not carry roles.manage")
	}
	if p.HasCapability("") {
		t.Fatal("empty grant must be ignored")
	}
}

func TestRequireOwnershipOrRole(t *testing.T) {
	owner := NewPrincipal(activeUser(RoleStandard), nil)
	if err := RequireOwnershipOrRole(owner, "u1"); err != nil {
		t.Fatalf("owner must pass, got %v", err)
	}
	if err := RequireOwnershipOrRole(owner, "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner without role must fail, got %v", err)
	}
	admin := NewPrincipal(&User{ID: "u2", Role: RoleAdmin, Status: StatusActive}, nil)
	if err := RequireOwnershipOrRole(admin, "someone-else", RoleAdmin); err != nil {
		t.Fatalf("allowed role must pass, got %v", err)
	}
	if err := RequireOwnershipOrRole(admin, "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("empty allowed set must reject non-owner, got %v", err)
	}
}
