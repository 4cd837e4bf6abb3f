package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/atelierhq/atelier/internal/session"
)

type sessionStore struct{ s *Store }

var _ session.Store = sessionStore{}

func (st sessionStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into assist_sessions (id, owner_id, workshop_id, note, active, started_at)
		values ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.OwnerID, sess.WorkshopID, sess.Note, sess.Active, sess.StartedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return session.ErrNotFound
		}
		return err
	}
	return nil
}

func (st sessionStore) Find(ctx context.Context, id string) (*session.Session, error) {
	var (
		sess  session.Session
		ended sql.NullTime
	)
	err := st.s.db.QueryRowContext(ctx, `
		select id, owner_id, workshop_id, note, active, started_at, ended_at
		from assist_sessions where id = $1
	`, id).Scan(&sess.ID, &sess.OwnerID, &sess.WorkshopID, &sess.Note, &sess.Active, &sess.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

// End stamps ended_at exactly once. The guard on active keeps a second end
// from moving the stored timestamp.
func (st sessionStore) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	res, err := st.s.db.ExecContext(ctx, `
		update assist_sessions
		set active = false, ended_at = $2
		where id = $1 and active = true
	`, id, endedAt)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}

func (st sessionStore) ListActive(ctx context.Context, ownerID string) ([]session.Session, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select id, owner_id, workshop_id, note, active, started_at, ended_at
		from assist_sessions
		where active = true and ($1 = '' or owner_id = $1)
		order by started_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		var (
			sess  session.Session
			ended sql.NullTime
		)
		if err := rows.Scan(&sess.ID, &sess.OwnerID, &sess.WorkshopID, &sess.Note, &sess.Active, &sess.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			sess.EndedAt = &t
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
