// Package invite implements token-gated state transitions: single-use,
// time-limited bearer tokens (workshop invites and diagnostic links) whose
// redemption advances a linked record's lifecycle at most once.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/ids"
)

// Kind distinguishes what a token gates.
type Kind string

const (
	KindInvite     Kind = "invite"
	KindDiagnostic Kind = "diagnostic"
)

// Status is the stored consumption state. Expiry is derived from the wall
// clock on every check, never stored as a transition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
)

// Validation failure reasons, ordered by check precedence.
const (
	ReasonNotFound    = "not_found"
	ReasonExpired     = "expired"
	ReasonAlreadyUsed = "already_used"
)

var (
	// ErrInvalidToken is the umbrella error for any redemption failure.
	ErrInvalidToken = errors.New("invite: invalid token")

	// ErrInvalidInput flags caller mistakes when issuing tokens.
	ErrInvalidInput = errors.New("invite: invalid input")
)

// TokenError carries the specific validation reason.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string { return "invite: invalid token: " + e.Reason }

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

// Token is one access token tied to a target record.
type Token struct {
	ID          string     `json:"id"`
	Token       string     `json:"token"`
	Kind        Kind       `json:"kind"`
	WorkshopID  string     `json:"workshop_id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store persists tokens. CompareAndSetStatus must only apply the transition
// when the stored status still equals from, and report whether it did.
type Store interface {
	Create(ctx context.Context, tok *Token) error
	FindByToken(ctx context.Context, token string) (*Token, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

// Validation is the outcome of checking a token string.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Token  *Token `json:"-"`
}

// Service issues, validates and redeems tokens.
type Service struct {
	store Store
	now   func() time.Time
	ttl   time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTTL overrides the default token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewService constructs the token service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("invite: store is required")
	}
	s := &Service{store: store, now: time.Now, ttl: 7 * 24 * time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a fresh pending token for the given target.
func (s *Service) Issue(ctx context.Context, kind Kind, workshopID, email, role string) (*Token, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if kind != KindInvite && kind != KindDiagnostic {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidInput, kind)
	}
	if kind == KindInvite && (email == "" || !strings.Contains(email, "@")) {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	opaque, err := opaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tok := &Token{
		ID:         ids.New(),
		Token:      opaque,
		Kind:       kind,
		WorkshopID: strings.TrimSpace(workshopID),
		Email:      email,
		Role:       strings.TrimSpace(role),
		ExpiresAt:  now.Add(s.ttl),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Validate checks a token string. Checks run in order: existence, expiry,
// consumption state; the first failing check determines the reason.
func (s *Service) Validate(ctx context.Context, token string) (Validation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Validation{Valid: false, Reason: ReasonNotFound}, nil
	}
	rec, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		return Validation{Valid: false, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Validation{}, err
	}
	if s.now().After(rec.ExpiresAt) {
		return Validation{Valid: false, Reason: ReasonExpired, Token: rec}, nil
	}
	if rec.Status == StatusCompleted {
		return Validation{Valid: false, Reason: ReasonAlreadyUsed, Token: rec}, nil
	}
	return Validation{Valid: true, Token: rec}, nil
}

// MarkSent records that a notification carrying the token was dispatched.
// Only a pending token moves to sent; anything else is left untouched.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	swapped, err := s.store.CompareAndSetStatus(ctx, id, StatusPending, StatusSent, s.now().UTC())
	if err != nil {
		return err
	}
	if !swapped {
		return &TokenError{Reason: ReasonAlreadyUsed}
	}
	return nil
}

// Redeem validates the token, runs the domain side effect and marks the token
// completed. The consumption state is re-checked immediately before the
// completing write, so a retried redemption observes already_used instead of
// re-running the effect. The underlying store offers no transaction spanning
// effect and status write; the at-most-once guarantee is therefore advisory.
func (s *Service) Redeem(ctx context.Context, token string, effect func(context.Context, *Token) error) (*Token, error) {
	validation, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, &TokenError{Reason: validation.Reason}
	}
	rec := validation.Token

	if effect != nil {
		if err := effect(ctx, rec); err != nil {
			return nil, err
		}
	}

	// Guarded read-modify-write: the swap only lands if the stored status
	// still matches what validation saw, so a retried redemption observes
	// already_used here instead of completing twice.
	at := s.now().UTC()
	swapped, err := s.store.CompareAndSetStatus(ctx, rec.ID, rec.Status, StatusCompleted, at)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, &TokenError{Reason: ReasonAlreadyUsed}
	}
	rec.Status = StatusCompleted
	rec.UpdatedAt = at
	rec.CompletedAt = &at
	return rec, nil
}

// DeleteByEmail removes every token issued for the address and reports how
// many were dropped.
func (s *Service) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	return s.store.DeleteByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

func opaqueToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
