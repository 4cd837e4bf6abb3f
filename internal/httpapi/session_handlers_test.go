package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/atelierhq/atelier/internal/session"
)

func startTestSession(t *testing.T, api *apiClient, token string) session.Session {
	t.Helper()
	resp := api.post("/v1/assist/sessions", map[string]any{
		"workshop_id": testWorkshopID,
		"note":        "quarterly checkup",
	}, authz(token))
	sess := decodeBody[session.Session](t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	return sess
}

func TestSessionStartRequiresCapability(t *testing.T) {
	api := newTestAPI(t)
	standard := api.obtainToken("standard@atelier.test")

	resp := api.post("/v1/assist/sessions", map[string]any{"workshop_id": testWorkshopID}, authz(standard))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSessionEndOnlyByOwner(t *testing.T) {
	api := newTestAPI(t)
	admin := api.obtainToken("admin@atelier.test")
	sess := startTestSession(t, api, admin)

	other := api.obtainToken("standard@atelier.test")
	resp := api.post("/v1/assist/sessions/"+sess.ID+"/end", nil, authz(other))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.StatusCode)
	}

	// The session is untouched by the denied attempt.
	stored, err := api.store.Sessions().Find(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if !stored.Active || stored.EndedAt != nil {
		t.Fatal("denied end must leave the session active")
	}

	// Owner ends it.
	resp = api.post("/v1/assist/sessions/"+sess.ID+"/end", nil, authz(admin))
	ended := decodeBody[session.Session](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ended.Active || ended.EndedAt == nil {
		t.Fatal("ended session must carry an end timestamp")
	}

	// A second end is rejected and the stamp does not move.
	resp = api.post("/v1/assist/sessions/"+sess.ID+"/end", nil, authz(admin))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for repeated end, got %d", resp.StatusCode)
	}
	again, err := api.store.Sessions().Find(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if !again.EndedAt.Equal(*ended.EndedAt) {
		t.Fatal("end timestamp must be stamped exactly once")
	}
}

func TestSessionListActiveScopedToOwner(t *testing.T) {
	api := newTestAPI(t)
	admin := api.obtainToken("admin@atelier.test")
	sess := startTestSession(t, api, admin)

	resp := api.get("/v1/assist/sessions", nil, authz(admin))
	body := decodeBody[struct {
		Items []session.Session `json:"items"`
	}](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(body.Items) != 1 || body.Items[0].ID != sess.ID {
		t.Fatalf("expected the started session, got %+v", body.Items)
	}
}
