package httpapi

import (
	"net/http"
	"strings"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
)

type startSessionRequest struct {
	WorkshopID string `json:"workshop_id"`
	Note       string `json:"note"`
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.startSession(w, r)
	case http.MethodGet:
		a.listSessions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.ensureCapability(w, r, auth.CapAssistSessions)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.sessions.Start(r.Context(), principal.ID, req.WorkshopID, req.Note)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionSessionStarted,
		TargetType: "assist_session",
		TargetID:   sess.ID,
		Changes:    map[string]any{"workshop_id": sess.WorkshopID},
	})
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.ensureCapability(w, r, auth.CapAssistSessions)
	if !ok {
		return
	}
	sessions, err := a.sessions.ListActive(r.Context(), principal.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sessions})
}

func (a *API) handleSessionScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/assist/sessions/"), "/")
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		a.getSession(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "end":
		a.endSession(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := a.ensureCapability(w, r, auth.CapAssistSessions)
	if !ok {
		return
	}
	sess, err := a.sessions.Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.RequireOwnershipOrRole(principal, sess.OwnerID, auth.RoleAdmin); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// endSession terminates an assistance window. Only the principal that opened
// the session may end it, admin role notwithstanding.
func (a *API) endSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	sess, err := a.sessions.Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.RequireOwnershipOrRole(principal, sess.OwnerID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	ended, err := a.sessions.End(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionSessionEnded,
		TargetType: "assist_session",
		TargetID:   ended.ID,
		Changes:    map[string]any{"workshop_id": ended.WorkshopID},
	})
	writeJSON(w, http.StatusOK, ended)
}
