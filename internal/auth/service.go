package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service resolves identities and issues token pairs. It owns no state beyond
// injected collaborators; every request is resolved independently.
type Service struct {
	users  UserStore
	grants GrantStore
	tokens RefreshTokenStore
	signer *TokenSigner

	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the identity service.
func NewService(users UserStore, grants GrantStore, tokens RefreshTokenStore, signer *TokenSigner, opts ...ServiceOption) (*Service, error) {
	if users == nil || tokens == nil || signer == nil {
		return nil, errors.New("auth: users, tokens and signer are required")
	}
	svc := &Service{
		users:      users,
		grants:     grants,
		tokens:     tokens,
		signer:     signer,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TokenPair carries access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Principal loads the user and resolves its capability set.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	var grants []string
	if s.grants != nil {
		grants, err = s.grants.GrantsForUser(ctx, userID)
		if err != nil {
			return Principal{}, err
		}
	}
	return NewPrincipal(user, grants), nil
}

// Login authenticates credentials and issues a fresh token pair. Suspended
// accounts are rejected; pending accounts may log in to complete their
// profile but remain gated for everything else.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	if user.Status == StatusSuspended {
		return TokenPair{}, Principal{}, ErrForbidden
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	principal, err := s.Principal(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.mintTokens(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Refresh rotates the refresh token and issues new access credentials.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}

	record, err := s.tokens.Find(ctx, tokenID)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = s.tokens.MarkRevoked(ctx, record.ID)
		return TokenPair{}, Principal{}, ErrInvalidToken
	}

	principal, err := s.Principal(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	// Rotate: revoke the old token, issue a new pair.
	if err := s.tokens.MarkRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.mintTokens(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Resolve validates an access token and returns the current principal.
func (s *Service) Resolve(ctx context.Context, token string) (Principal, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if principal.Status == StatusSuspended {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}

// CompleteProfile is the one self-service mutation a pending account may
// perform: set a display name (and optionally a new password), which
// activates the account.
func (s *Service) CompleteProfile(ctx context.Context, userID, displayName, password string) (*User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == StatusSuspended {
		return nil, ErrForbidden
	}
	user.DisplayName = displayName
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if user.Status == StatusPending {
		user.Status = StatusActive
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) mintTokens(ctx context.Context, principal Principal) (TokenPair, error) {
	now := s.now()
	accessToken, accessExp, err := s.signer.Generate(principal.ID, principal.Role, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, refreshRec, err := s.generateRefreshToken(principal.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Create(ctx, refreshRec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshRec.ExpiresAt,
	}, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := ids.New()
	sum := sha256.Sum256([]byte(secret))
	rec := &RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now.UTC(),
	}
	return tokenID + "." + secret, rec, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
