// Package session tracks assistance-mode windows: a bounded period during
// which an admin observes or acts on another workshop's data.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/ids"
)

var (
	ErrNotFound     = errors.New("session: not found")
	ErrInvalidInput = errors.New("session: invalid input")
	ErrAlreadyEnded = errors.New("session: already ended")
)

// Session is one assistance window. EndedAt is stamped exactly once.
type Session struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	WorkshopID string     `json:"workshop_id"`
	Note       string     `json:"note,omitempty"`
	Active     bool       `json:"active"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Store persists sessions. End must only deactivate a still-active session
// and report whether it did.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	End(ctx context.Context, id string, endedAt time.Time) (bool, error)
	ListActive(ctx context.Context, ownerID string) ([]Session, error)
}

// Service starts and terminates assistance sessions.
type Service struct {
	store Store
	now   func() time.Time
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

// NewService constructs the session service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start opens an assistance window owned by the given principal.
func (s *Service) Start(ctx context.Context, ownerID, workshopID, note string) (*Session, error) {
	ownerID = strings.TrimSpace(ownerID)
	workshopID = strings.TrimSpace(workshopID)
	if ownerID == "" || workshopID == "" {
		return nil, ErrInvalidInput
	}
	sess := &Session{
		ID:         ids.New(),
		OwnerID:    ownerID,
		WorkshopID: workshopID,
		Note:       strings.TrimSpace(note),
		Active:     true,
		StartedAt:  s.now().UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Find returns the session by id.
func (s *Service) Find(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.store.Find(ctx, id)
}

// End deactivates the session and stamps the end time exactly once. A second
// call observes ErrAlreadyEnded; the stored end time never moves.
func (s *Service) End(ctx context.Context, id string) (*Session, error) {
	sess, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	endedAt := s.now().UTC()
	ended, err := s.store.End(ctx, sess.ID, endedAt)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, ErrAlreadyEnded
	}
	sess.Active = false
	sess.EndedAt = &endedAt
	return sess, nil
}

// ListActive returns the principal's open sessions.
func (s *Service) ListActive(ctx context.Context, ownerID string) ([]Session, error) {
	return s.store.ListActive(ctx, strings.TrimSpace(ownerID))
}
