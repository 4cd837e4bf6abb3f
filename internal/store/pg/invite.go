package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/invite"
)

type inviteStore struct{ s *Store }

var _ invite.Store = inviteStore{}

func (st inviteStore) Create(ctx context.Context, tok *invite.Token) error {
	// Diagnostic tokens carry no workshop; an empty id is stored as NULL so
	// the foreign key only applies when a workshop is actually referenced.
	var workshopID sql.NullString
	if tok.WorkshopID != "" {
		workshopID = sql.NullString{String: tok.WorkshopID, Valid: true}
	}
	_, err := st.s.db.ExecContext(ctx, `
		insert into access_tokens (id, token, kind, workshop_id, email, role, expires_at, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tok.ID, tok.Token, string(tok.Kind), workshopID, tok.Email, tok.Role,
		tok.ExpiresAt, string(tok.Status), tok.CreatedAt, tok.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return errors.New("pg: token collision")
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: workshop does not exist", invite.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (st inviteStore) FindByToken(ctx context.Context, token string) (*invite.Token, error) {
	var (
		tok        invite.Token
		kind       string
		status     string
		workshopID sql.NullString
		completed  sql.NullTime
	)
	err := st.s.db.QueryRowContext(ctx, `
		select id, token, kind, workshop_id, email, role, expires_at, status, created_at, updated_at, completed_at
		from access_tokens where token = $1
	`, token).Scan(&tok.ID, &tok.Token, &kind, &workshopID, &tok.Email, &tok.Role,
		&tok.ExpiresAt, &status, &tok.CreatedAt, &tok.UpdatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invite.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	tok.Kind = invite.Kind(kind)
	tok.Status = invite.Status(status)
	tok.WorkshopID = workshopID.String
	if completed.Valid {
		t := completed.Time
		tok.CompletedAt = &t
	}
	return &tok, nil
}

// CompareAndSetStatus applies the transition only when the stored status still
// equals from. The where clause carries the guard; zero rows affected means
// another writer got there first.
func (st inviteStore) CompareAndSetStatus(ctx context.Context, id string, from, to invite.Status, at time.Time) (bool, error) {
	res, err := st.s.db.ExecContext(ctx, `
		update access_tokens
		set status = $3,
		    updated_at = $4,
		    completed_at = case when $3 = 'completed' then $4 else completed_at end
		where id = $1 and status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}

func (st inviteStore) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	res, err := st.s.db.ExecContext(ctx, `delete from access_tokens where email = $1`, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
