// Package pg implements the store interfaces on PostgreSQL via the pgx
// stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/invite"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/workshop"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store wraps the shared connection pool. The typed sub-stores returned by
// the accessor methods share it.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests running against sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() auth.UserStore                 { return userStore{s} }
func (s *Store) Grants() auth.GrantStore               { return grantStore{s} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return refreshStore{s} }
func (s *Store) Audit() audit.Store                    { return auditStore{s} }
func (s *Store) Invites() invite.Store                 { return inviteStore{s} }
func (s *Store) Sessions() session.Store               { return sessionStore{s} }
func (s *Store) Workshops() workshop.Store             { return workshopStore{s} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
