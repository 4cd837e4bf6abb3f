// Package workshop holds the tenant-scoped domain records: workshops, their
// client records and meeting minutes.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/ids"
)

var (
	ErrNotFound     = errors.New("workshop: not found")
	ErrInvalidInput = errors.New("workshop: invalid input")
	ErrAlreadyFinal = errors.New("workshop: minutes already finalized")
)

// Workshop is one tenant.
type Workshop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientRecord is a customer of one workshop.
type ClientRecord struct {
	ID         string    `json:"id"`
	WorkshopID string    `json:"workshop_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Minutes lifecycle states. final is terminal.
const (
	MinutesDraft = "draft"
	MinutesFinal = "final"
)

// Minutes is one meeting-minutes document.
type Minutes struct {
	ID          string     `json:"id"`
	WorkshopID  string     `json:"workshop_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// Store persists the domain records. FinalizeMinutes must only transition a
// draft document and report whether it did.
type Store interface {
	CreateWorkshop(ctx context.Context, w *Workshop) error
	GetWorkshop(ctx context.Context, id string) (*Workshop, error)
	ListWorkshops(ctx context.Context) ([]Workshop, error)

	CreateClient(ctx context.Context, c *ClientRecord) error
	ListClients(ctx context.Context, workshopID string) ([]ClientRecord, error)
	DeleteClientsByEmail(ctx context.Context, email string) (int64, error)

	CreateMinutes(ctx context.Context, m *Minutes) error
	GetMinutes(ctx context.Context, id string) (*Minutes, error)
	ListMinutes(ctx context.Context, workshopID string) ([]Minutes, error)
	FinalizeMinutes(ctx context.Context, id string, at time.Time) (bool, error)
}

// Service validates inputs and drives the minutes lifecycle.
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

// NewService constructs the workshop service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("workshop: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateWorkshop registers a new tenant.
func (s *Service) CreateWorkshop(ctx context.Context, name, city string) (*Workshop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: workshop name is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	w := &Workshop{
		ID:        ids.New(),
		Name:      name,
		City:      strings.TrimSpace(city),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateWorkshop(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorkshop returns one workshop by id.
func (s *Service) GetWorkshop(ctx context.Context, id string) (*Workshop, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: workshop_id is required", ErrInvalidInput)
	}
	return s.store.GetWorkshop(ctx, id)
}

// ListWorkshops returns all tenants.
func (s *Service) ListWorkshops(ctx context.Context) ([]Workshop, error) {
	return s.store.ListWorkshops(ctx)
}

// CreateClient adds a client record to a workshop.
func (s *Service) CreateClient(ctx context.Context, workshopID, name, email, notes string) (*ClientRecord, error) {
	workshopID = strings.TrimSpace(workshopID)
	name = strings.TrimSpace(name)
	if workshopID == "" || name == "" {
		return nil, fmt.Errorf("%w: workshop_id and name are required", ErrInvalidInput)
	}
	if _, err := s.store.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &ClientRecord{
		ID:         ids.New(),
		WorkshopID: workshopID,
		Name:       name,
		Email:      strings.TrimSpace(strings.ToLower(email)),
		Notes:      strings.TrimSpace(notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListClients returns a workshop's client records.
func (s *Service) ListClients(ctx context.Context, workshopID string) ([]ClientRecord, error) {
	workshopID = strings.TrimSpace(workshopID)
	if workshopID == "" {
		return nil, fmt.Errorf("%w: workshop_id is required", ErrInvalidInput)
	}
	return s.store.ListClients(ctx, workshopID)
}

// DeleteClientsByEmail removes every client record carrying the address and
// reports how many were dropped.
func (s *Service) DeleteClientsByEmail(ctx context.Context, email string) (int64, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return 0, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.DeleteClientsByEmail(ctx, email)
}

// CreateMinutes opens a draft minutes document.
func (s *Service) CreateMinutes(ctx context.Context, workshopID, title, body string) (*Minutes, error) {
	workshopID = strings.TrimSpace(workshopID)
	title = strings.TrimSpace(title)
	if workshopID == "" || title == "" {
		return nil, fmt.Errorf("%w: workshop_id and title are required", ErrInvalidInput)
	}
	if _, err := s.store.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m := &Minutes{
		ID:         ids.New(),
		WorkshopID: workshopID,
		Title:      title,
		Body:       body,
		Status:     MinutesDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateMinutes(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMinutes returns a workshop's minutes documents.
func (s *Service) ListMinutes(ctx context.Context, workshopID string) ([]Minutes, error) {
	workshopID = strings.TrimSpace(workshopID)
	if workshopID == "" {
		return nil, fmt.Errorf("%w: workshop_id is required", ErrInvalidInput)
	}
	return s.store.ListMinutes(ctx, workshopID)
}

// FinalizeMinutes moves a draft document to final exactly once. Finalizing a
// document that already reached final is rejected, not re-applied.
func (s *Service) FinalizeMinutes(ctx context.Context, id string) (*Minutes, error) {
	m, err := s.store.GetMinutes(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	done, err := s.store.FinalizeMinutes(ctx, m.ID, at)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, ErrAlreadyFinal
	}
	m.Status = MinutesFinal
	m.UpdatedAt = at
	m.FinalizedAt = &at
	return m, nil
}
