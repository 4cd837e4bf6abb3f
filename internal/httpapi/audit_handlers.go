package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
)

// record stamps request origin and client info onto the entry before handing
// it to the recorder. Call it only after the gated action succeeded.
func (a *API) record(r *http.Request, entry audit.Entry) {
	entry.Origin = clientIP(r)
	entry.ClientInfo = strings.TrimSpace(r.UserAgent())
	a.recorder.Record(r.Context(), entry)
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapViewAudit); !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}
	entries, err := a.recorder.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
