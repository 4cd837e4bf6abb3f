package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/atelierhq/atelier/internal/auth"
)

// entityLister serves one allow-listed admin listing. Query parameters are
// passed through so listers can scope by workshop.
type entityLister func(ctx context.Context, query url.Values) (any, error)

// entityRegistry maps entity names onto typed listers. Only names registered
// here are reachable; there is no reflective lookup by client-supplied type.
type entityRegistry struct {
	listers map[string]entityLister
}

func newEntityRegistry(a *API) *entityRegistry {
	return &entityRegistry{listers: map[string]entityLister{
		"workshops": func(ctx context.Context, _ url.Values) (any, error) {
			return a.workshops.ListWorkshops(ctx)
		},
		"users": func(ctx context.Context, q url.Values) (any, error) {
			return a.users.ListByWorkshop(ctx, strings.TrimSpace(q.Get("workshop_id")))
		},
		"clients": func(ctx context.Context, q url.Values) (any, error) {
			return a.workshops.ListClients(ctx, strings.TrimSpace(q.Get("workshop_id")))
		},
		"minutes": func(ctx context.Context, q url.Values) (any, error) {
			return a.workshops.ListMinutes(ctx, strings.TrimSpace(q.Get("workshop_id")))
		},
		"active_sessions": func(ctx context.Context, _ url.Values) (any, error) {
			return a.sessions.ListActive(ctx, "")
		},
	}}
}

func (reg *entityRegistry) names() []string {
	out := make([]string, 0, len(reg.listers))
	for name := range reg.listers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// handleAdminEntities covers GET /v1/admin/entities/{name}.
func (a *API) handleAdminEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.RequireRole(principal, auth.RoleAdmin); err != nil {
		handleDomainError(w, r, err)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/entities/"), "/")
	lister, ok := a.registry.listers[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "unknown entity",
			"entities": a.registry.names(),
		})
		return
	}
	items, err := lister(r.Context(), r.URL.Query())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": name, "items": items})
}
