package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubUserStore struct {
	byID    map[string]*User
	byEmail map[string]*User
	updated []*User
}

func (s *stubUserStore) Create(_ context.Context, u *User) error { return nil }

func (s *stubUserStore) Find(_ context.Context, id string) (*User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUserStore) ListByWorkshop(_ context.Context, _ string) ([]*User, error) {
	return nil, nil
}

func (s *stubUserStore) Update(_ context.Context, u *User) error {
	s.updated = append(s.updated, u)
	s.byID[u.ID] = u
	return nil
}

func (s *stubUserStore) DeleteByEmail(_ context.Context, _ string) (int64, error) { return 0, nil }

type stubRefreshStore struct {
	tokens map[string]*RefreshToken
}

func (s *stubRefreshStore) Create(_ context.Context, tok *RefreshToken) error {
	cp := *tok
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *stubRefreshStore) Find(_ context.Context, id string) (*RefreshToken, error) {
	tok, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *stubRefreshStore) MarkRevoked(_ context.Context, id string) error {
	tok, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (s *stubRefreshStore) MarkRevokedByUser(_ context.Context, userID string) error {
	for _, tok := range s.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func newTestService(t *testing.T, users *stubUserStore) (*Service, *stubRefreshStore) {
	t.Helper()
	signer, err := NewTokenSigner("secret", "atelier-test")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	refresh := &stubRefreshStore{tokens: map[string]*RefreshToken{}}
	svc, err := NewService(users, nil, refresh, signer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, refresh
}

func seedStubUser(t *testing.T, status string) *stubUserStore {
	t.Helper()
	hash, err := HashPassword("open-sesame")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		ID:           "u1",
		WorkshopID:   "w1",
		Email:        "user@atelier.test",
		DisplayName:  "User",
		PasswordHash: hash,
		Role:         RoleStandard,
		Status:       status,
	}
	return &stubUserStore{
		byID:    map[string]*User{"u1": u},
		byEmail: map[string]*User{"user@atelier.test": u},
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestService(t, seedStubUser(t, StatusActive))

	pair, principal, err := svc.Login(context.Background(), " User@Atelier.Test ", "open-sesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if principal.ID != "u1" || principal.Role != RoleStandard {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, seedStubUser(t, StatusActive))
	if _, _, err := svc.Login(context.Background(), "user@atelier.test", "wrong"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLoginSuspended(t *testing.T) {
	svc, _ := newTestService(t, seedStubUser(t, StatusSuspended))
	if _, _, err := svc.Login(context.Background(), "user@atelier.test", "open-sesame"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, refresh := newTestService(t, seedStubUser(t, StatusActive))

	pair, _, err := svc.Login(context.Background(), "user@atelier.test", "open-sesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, _, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// Old token is revoked.
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for reused token, got %v", err)
	}

	var live int
	for _, tok := range refresh.tokens {
		if !tok.Revoked {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly one live refresh token, got %d", live)
	}
}

func TestRefreshTamperedSecretRevokes(t *testing.T) {
	svc, refresh := newTestService(t, seedStubUser(t, StatusActive))

	pair, _, err := svc.Login(context.Background(), "user@atelier.test", "open-sesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, _, err := splitRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("splitRefreshToken: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), id+".forged-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !refresh.tokens[id].Revoked {
		t.Fatal("a bad secret for a known token id must revoke the record")
	}
}

func TestResolveUnknownSubject(t *testing.T) {
	svc, _ := newTestService(t, seedStubUser(t, StatusActive))
	signer, err := NewTokenSigner("secret", "atelier-test")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	token, _, err := signer.Generate("deleted-user", RoleStandard, time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown subject, got %v", err)
	}
}

func TestCompleteProfileActivatesPending(t *testing.T) {
	users := seedStubUser(t, StatusPending)
	svc, _ := newTestService(t, users)

	user, err := svc.CompleteProfile(context.Background(), "u1", "  New Name  ", "")
	if err != nil {
		t.Fatalf("CompleteProfile: %v", err)
	}
	if user.Status != StatusActive {
		t.Fatalf("expected active, got %s", user.Status)
	}
	if user.DisplayName != "New Name" {
		t.Fatalf("expected trimmed display name, got %q", user.DisplayName)
	}

	if _, err := svc.CompleteProfile(context.Background(), "u1", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
}
