package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/ids"
	"github.com/atelierhq/atelier/internal/invite"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/store/memory"
	"github.com/atelierhq/atelier/internal/workshop"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	t       *testing.T
}

const (
	testWorkshopID = "workshop-main"
	testPassword   = "correct-horse"
)

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	seedUsers(t, store)

	signer, err := auth.NewTokenSigner("test-secret", "atelier-test")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	identity, err := auth.NewService(store.Users(), store.Grants(), store.RefreshTokens(), signer)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	invites, err := invite.NewService(store.Invites())
	if err != nil {
		t.Fatalf("invite.NewService: %v", err)
	}
	sessions, err := session.NewService(store.Sessions())
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}
	workshops, err := workshop.NewService(store.Workshops())
	if err != nil {
		t.Fatalf("workshop.NewService: %v", err)
	}

	api := New(Config{
		Version:       "test",
		Identity:      identity,
		Users:         store.Users(),
		Invites:       invites,
		Sessions:      sessions,
		Workshops:     workshops,
		Recorder:      audit.NewRecorder(store.Audit()),
		RateBurst:     1000,
		RatePerSecond: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func seedUsers(t *testing.T, store *memory.Store) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	if err := store.Workshops().CreateWorkshop(context.Background(), &workshop.Workshop{
		ID:        testWorkshopID,
		Name:      "Main Workshop",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed workshop: %v", err)
	}
	for _, u := range []*auth.User{
		{ID: "user-admin", Email: "admin@atelier.test", DisplayName: "Admin", Role: auth.RoleAdmin, Status: auth.StatusActive},
		{ID: "user-standard", Email: "standard@atelier.test", DisplayName: "Standard", Role: auth.RoleStandard, Status: auth.StatusActive},
		{ID: "user-pending", Email: "pending@atelier.test", Role: auth.RolePending, Status: auth.StatusPending},
		{ID: "user-suspended", Email: "suspended@atelier.test", DisplayName: "Gone", Role: auth.RoleStandard, Status: auth.StatusSuspended},
	} {
		u.WorkshopID = testWorkshopID
		u.PasswordHash = hash
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := store.Users().Create(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func (c *apiClient) obtainToken(email string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{"email": email, "password": testPassword}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	return body.Tokens.AccessToken
}

func authz(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) del(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodDelete, path, nil, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/healthz", nil, nil)
	body := decodeBody[map[string]any](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["service"] != "atelier-api" {
		t.Fatalf("unexpected service: %v", body["service"])
	}
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin@atelier.test")

	resp := api.get("/v1/auth/me", nil, authz(token))
	principal := decodeBody[auth.Principal](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if principal.Role != auth.RoleAdmin {
		t.Fatalf("unexpected role: %s", principal.Role)
	}
	if !principal.HasCapability(auth.CapManageRoles) {
		t.Fatal("admin principal must carry roles.manage")
	}
}

func TestLoginSuspendedRejected(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/login", map[string]any{
		"email": "suspended@atelier.test", "password": testPassword,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/login", map[string]any{
		"email": "admin@atelier.test", "password": testPassword,
	}, nil)
	login := decodeBody[tokenResponse](t, resp)

	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": login.Tokens.RefreshToken}, nil)
	refreshed := decodeBody[tokenResponse](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if refreshed.Tokens.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	// The old refresh token was revoked by the rotation.
	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": login.Tokens.RefreshToken}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused refresh token, got %d", resp.StatusCode)
	}
}

func TestPendingCompletesProfile(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("pending@atelier.test")

	// Pending accounts are unauthenticated for gated operations.
	resp := api.post("/v1/workshops", map[string]any{"name": "Side Shop"}, authz(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for pending account, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/profile", map[string]any{"display_name": "Now Active"}, authz(token))
	user := decodeBody[auth.User](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if user.Status != auth.StatusActive {
		t.Fatalf("profile completion must activate the account, got %s", user.Status)
	}
}

func TestLoginIgnoresUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "admin@atelier.test",
		"password": testPassword,
		"extra":    "sent by a newer client",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown field must be ignored, got %d", resp.StatusCode)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tokens.AccessToken == "" {
		t.Fatal("expected a token pair")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("admin@atelier.test")
	resp := api.get("/v1/nope/"+ids.New(), nil, authz(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
