package httpapi

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

// handleAdminUsers covers DELETE /v1/admin/users?email=: the cross-store
// purge of everything tied to an email address.
func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapDeleteRecords); !ok {
		return
	}
	email := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("email")))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "email query parameter is required")
		return
	}

	// Fan out across the stores holding records keyed by email. All or
	// nothing: any failure reports a 500 and no partial count.
	var total int64
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		n, err := a.users.DeleteByEmail(ctx, email)
		atomic.AddInt64(&total, n)
		return err
	})
	g.Go(func() error {
		n, err := a.invites.DeleteByEmail(ctx, email)
		atomic.AddInt64(&total, n)
		return err
	})
	g.Go(func() error {
		n, err := a.workshops.DeleteClientsByEmail(ctx, email)
		atomic.AddInt64(&total, n)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, http.StatusInternalServerError, "purge failed")
		return
	}

	count := int(atomic.LoadInt64(&total))
	a.record(r, audit.Entry{
		Action:        audit.ActionRecordDeleted,
		TargetType:    "email",
		TargetID:      email,
		AffectedCount: count,
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

// handleAdminUserScoped covers PUT /v1/admin/users/{id}/role.
func (a *API) handleAdminUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "role" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapManageRoles); !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	requested := strings.TrimSpace(strings.ToLower(req.Role))
	if requested != string(auth.RoleAdmin) && requested != string(auth.RoleStandard) && requested != string(auth.RolePending) {
		writeError(w, r, http.StatusBadRequest, "role must be one of admin, standard, pending")
		return
	}

	user, err := a.users.Find(r.Context(), parts[0])
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	previous := user.Role
	user.Role = auth.Role(requested)
	user.UpdatedAt = time.Now().UTC()
	if err := a.users.Update(r.Context(), user); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionRoleChanged,
		TargetType: "user",
		TargetID:   user.ID,
		Changes:    map[string]any{"from": string(previous), "to": string(user.Role)},
	})
	writeJSON(w, http.StatusOK, user)
}
