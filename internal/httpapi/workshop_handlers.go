package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
)

type createWorkshopRequest struct {
	Name string `json:"name"`
	City string `json:"city"`
}

type createClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type createMinutesRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (a *API) handleWorkshops(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createWorkshop(w, r)
	case http.MethodGet:
		a.listWorkshops(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createWorkshop(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensureCapability(w, r, auth.CapManageWorkshops); !ok {
		return
	}
	var req createWorkshopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := a.workshops.CreateWorkshop(r.Context(), req.Name, req.City)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionWorkshopCreated,
		TargetType: "workshop",
		TargetID:   ws.ID,
		Changes:    map[string]any{"name": ws.Name},
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/workshops/%s", ws.ID))
	writeJSON(w, http.StatusCreated, ws)
}

func (a *API) listWorkshops(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensureCapability(w, r, auth.CapManageWorkshops); !ok {
		return
	}
	items, err := a.workshops.ListWorkshops(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleWorkshopScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workshops/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	workshopID := parts[0]
	switch {
	case len(parts) == 1:
		a.getWorkshop(w, r, workshopID)
	case len(parts) == 2 && parts[1] == "clients":
		a.handleWorkshopClients(w, r, workshopID)
	case len(parts) == 2 && parts[1] == "minutes":
		a.handleWorkshopMinutes(w, r, workshopID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getWorkshop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapManageWorkshops); !ok {
		return
	}
	ws, err := a.workshops.GetWorkshop(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (a *API) handleWorkshopClients(w http.ResponseWriter, r *http.Request, workshopID string) {
	switch r.Method {
	case http.MethodPost:
		if _, ok := a.ensureCapability(w, r, auth.CapManageClients); !ok {
			return
		}
		var req createClientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		client, err := a.workshops.CreateClient(r.Context(), workshopID, req.Name, req.Email, req.Notes)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	case http.MethodGet:
		if _, ok := a.ensureCapability(w, r, auth.CapManageClients); !ok {
			return
		}
		items, err := a.workshops.ListClients(r.Context(), workshopID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleWorkshopMinutes(w http.ResponseWriter, r *http.Request, workshopID string) {
	switch r.Method {
	case http.MethodPost:
		if _, ok := a.ensureCapability(w, r, auth.CapManageClients); !ok {
			return
		}
		var req createMinutesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		minutes, err := a.workshops.CreateMinutes(r.Context(), workshopID, req.Title, req.Body)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, minutes)
	case http.MethodGet:
		if _, ok := a.ensureCapability(w, r, auth.CapManageClients); !ok {
			return
		}
		items, err := a.workshops.ListMinutes(r.Context(), workshopID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// handleMinutesScoped covers POST /v1/minutes/{id}/finalize: the one-way
// draft to final transition.
func (a *API) handleMinutesScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/minutes/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "finalize" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapFinalizeMinutes); !ok {
		return
	}
	minutes, err := a.workshops.FinalizeMinutes(r.Context(), parts[0])
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionMinutesFinalized,
		TargetType: "minutes",
		TargetID:   minutes.ID,
		Changes:    map[string]any{"workshop_id": minutes.WorkshopID},
	})
	writeJSON(w, http.StatusOK, minutes)
}
