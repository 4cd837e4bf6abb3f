// Package memory is the in-process implementation of every store interface.
// It backs the test suite and dev mode when no Postgres DSN is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/invite"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/workshop"
)

// Store holds all records behind one mutex. Access the typed sub-stores via
// the accessor methods.
type Store struct {
	mu sync.RWMutex

	users    map[string]*auth.User
	grants   map[string][]string
	refresh  map[string]*auth.RefreshToken
	entries  []audit.Entry
	tokens   map[string]*invite.Token
	sessions map[string]*session.Session

	workshops map[string]*workshop.Workshop
	clients   map[string]*workshop.ClientRecord
	minutes   map[string]*workshop.Minutes
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]*auth.User),
		grants:    make(map[string][]string),
		refresh:   make(map[string]*auth.RefreshToken),
		tokens:    make(map[string]*invite.Token),
		sessions:  make(map[string]*session.Session),
		workshops: make(map[string]*workshop.Workshop),
		clients:   make(map[string]*workshop.ClientRecord),
		minutes:   make(map[string]*workshop.Minutes),
	}
}

func (s *Store) Users() auth.UserStore                 { return userStore{s} }
func (s *Store) Grants() auth.GrantStore               { return grantStore{s} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return refreshStore{s} }
func (s *Store) Audit() audit.Store                    { return auditStore{s} }
func (s *Store) Invites() invite.Store                 { return inviteStore{s} }
func (s *Store) Sessions() session.Store               { return sessionStore{s} }
func (s *Store) Workshops() workshop.Store             { return workshopStore{s} }

// --- users ---

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return auth.ErrConflict
		}
	}
	cp := *user
	u.s.users[user.ID] = &cp
	return nil
}

func (u userStore) Find(_ context.Context, id string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, user := range u.s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (u userStore) ListByWorkshop(_ context.Context, workshopID string) ([]*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var out []*auth.User
	for _, user := range u.s.users {
		if user.WorkshopID == workshopID {
			cp := *user
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (u userStore) Update(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *user
	u.s.users[user.ID] = &cp
	return nil
}

func (u userStore) DeleteByEmail(_ context.Context, email string) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var n int64
	for id, user := range u.s.users {
		if user.Email == email {
			delete(u.s.users, id)
			delete(u.s.grants, id)
			n++
		}
	}
	return n, nil
}

// --- grants ---

type grantStore struct{ s *Store }

func (g grantStore) GrantsForUser(_ context.Context, userID string) ([]string, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	src := g.s.grants[userID]
	out := make([]string, len(src))
	copy(out, src)
	return out, nil
}

// SetGrants replaces a user's explicit grants. Test/seed helper, not part of
// the auth.GrantStore contract.
func (s *Store) SetGrants(userID string, grants []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(grants))
	copy(cp, grants)
	s.grants[userID] = cp
}

// --- refresh tokens ---

type refreshStore struct{ s *Store }

func (r refreshStore) Create(_ context.Context, tok *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *tok
	r.s.refresh[tok.ID] = &cp
	return nil
}

func (r refreshStore) Find(_ context.Context, id string) (*auth.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tok, ok := r.s.refresh[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (r refreshStore) MarkRevoked(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tok, ok := r.s.refresh[id]
	if !ok {
		return auth.ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (r refreshStore) MarkRevokedByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tok := range r.s.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

// --- audit ---

type auditStore struct{ s *Store }

func (a auditStore) Append(_ context.Context, entry *audit.Entry) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.entries = append(a.s.entries, *entry)
	return nil
}

func (a auditStore) List(_ context.Context, limit int) ([]audit.Entry, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	n := len(a.s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]audit.Entry, 0, n)
	for i := len(a.s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.s.entries[i])
	}
	return out, nil
}

// --- invite tokens ---

type inviteStore struct{ s *Store }

func (i inviteStore) Create(_ context.Context, tok *invite.Token) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	cp := *tok
	i.s.tokens[tok.ID] = &cp
	return nil
}

func (i inviteStore) FindByToken(_ context.Context, token string) (*invite.Token, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	for _, tok := range i.s.tokens {
		if tok.Token == token {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, invite.ErrInvalidToken
}

func (i inviteStore) CompareAndSetStatus(_ context.Context, id string, from, to invite.Status, at time.Time) (bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	tok, ok := i.s.tokens[id]
	if !ok {
		return false, invite.ErrInvalidToken
	}
	if tok.Status != from {
		return false, nil
	}
	tok.Status = to
	tok.UpdatedAt = at
	if to == invite.StatusCompleted {
		stamp := at
		tok.CompletedAt = &stamp
	}
	return true, nil
}

func (i inviteStore) DeleteByEmail(_ context.Context, email string) (int64, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	var n int64
	for id, tok := range i.s.tokens {
		if tok.Email == email {
			delete(i.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// --- sessions ---

type sessionStore struct{ s *Store }

func (st sessionStore) Create(_ context.Context, sess *session.Session) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	cp := *sess
	st.s.sessions[sess.ID] = &cp
	return nil
}

func (st sessionStore) Find(_ context.Context, id string) (*session.Session, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	sess, ok := st.s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (st sessionStore) End(_ context.Context, id string, endedAt time.Time) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sess, ok := st.s.sessions[id]
	if !ok {
		return false, session.ErrNotFound
	}
	if !sess.Active {
		return false, nil
	}
	sess.Active = false
	stamp := endedAt
	sess.EndedAt = &stamp
	return true, nil
}

func (st sessionStore) ListActive(_ context.Context, ownerID string) ([]session.Session, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	var out []session.Session
	for _, sess := range st.s.sessions {
		if sess.Active && (ownerID == "" || sess.OwnerID == ownerID) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// --- workshops ---

type workshopStore struct{ s *Store }

func (w workshopStore) CreateWorkshop(_ context.Context, rec *workshop.Workshop) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	cp := *rec
	w.s.workshops[rec.ID] = &cp
	return nil
}

func (w workshopStore) GetWorkshop(_ context.Context, id string) (*workshop.Workshop, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	rec, ok := w.s.workshops[id]
	if !ok {
		return nil, workshop.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (w workshopStore) ListWorkshops(_ context.Context) ([]workshop.Workshop, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	out := make([]workshop.Workshop, 0, len(w.s.workshops))
	for _, rec := range w.s.workshops {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w workshopStore) CreateClient(_ context.Context, rec *workshop.ClientRecord) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	cp := *rec
	w.s.clients[rec.ID] = &cp
	return nil
}

func (w workshopStore) ListClients(_ context.Context, workshopID string) ([]workshop.ClientRecord, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	var out []workshop.ClientRecord
	for _, rec := range w.s.clients {
		if rec.WorkshopID == workshopID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w workshopStore) DeleteClientsByEmail(_ context.Context, email string) (int64, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	var n int64
	for id, rec := range w.s.clients {
		if rec.Email == email {
			delete(w.s.clients, id)
			n++
		}
	}
	return n, nil
}

func (w workshopStore) CreateMinutes(_ context.Context, rec *workshop.Minutes) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	cp := *rec
	w.s.minutes[rec.ID] = &cp
	return nil
}

func (w workshopStore) GetMinutes(_ context.Context, id string) (*workshop.Minutes, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	rec, ok := w.s.minutes[id]
	if !ok {
		return nil, workshop.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (w workshopStore) ListMinutes(_ context.Context, workshopID string) ([]workshop.Minutes, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	var out []workshop.Minutes
	for _, rec := range w.s.minutes {
		if rec.WorkshopID == workshopID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (w workshopStore) FinalizeMinutes(_ context.Context, id string, at time.Time) (bool, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	rec, ok := w.s.minutes[id]
	if !ok {
		return false, workshop.ErrNotFound
	}
	if rec.Status != workshop.MinutesDraft {
		return false, nil
	}
	rec.Status = workshop.MinutesFinal
	rec.UpdatedAt = at
	stamp := at
	rec.FinalizedAt = &stamp
	return true, nil
}
