package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/atelierhq/atelier/internal/workshop"
)

type workshopStore struct{ s *Store }

var _ workshop.Store = workshopStore{}

func (st workshopStore) CreateWorkshop(ctx context.Context, w *workshop.Workshop) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into workshops (id, name, city, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
	`, w.ID, w.Name, w.City, w.CreatedAt, w.UpdatedAt)
	return err
}

func (st workshopStore) GetWorkshop(ctx context.Context, id string) (*workshop.Workshop, error) {
	var w workshop.Workshop
	err := st.s.db.QueryRowContext(ctx, `
		select id, name, city, created_at, updated_at from workshops where id = $1
	`, id).Scan(&w.ID, &w.Name, &w.City, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (st workshopStore) ListWorkshops(ctx context.Context) ([]workshop.Workshop, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select id, name, city, created_at, updated_at from workshops order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workshop.Workshop
	for rows.Next() {
		var w workshop.Workshop
		if err := rows.Scan(&w.ID, &w.Name, &w.City, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (st workshopStore) CreateClient(ctx context.Context, c *workshop.ClientRecord) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into client_records (id, workshop_id, name, email, notes, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.WorkshopID, c.Name, c.Email, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workshop.ErrNotFound
		}
		return err
	}
	return nil
}

func (st workshopStore) ListClients(ctx context.Context, workshopID string) ([]workshop.ClientRecord, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select id, workshop_id, name, email, notes, created_at, updated_at
		from client_records
		where workshop_id = $1
		order by name
	`, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workshop.ClientRecord
	for rows.Next() {
		var c workshop.ClientRecord
		if err := rows.Scan(&c.ID, &c.WorkshopID, &c.Name, &c.Email, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (st workshopStore) DeleteClientsByEmail(ctx context.Context, email string) (int64, error) {
	res, err := st.s.db.ExecContext(ctx, `delete from client_records where email = $1`, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (st workshopStore) CreateMinutes(ctx context.Context, m *workshop.Minutes) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into meeting_minutes (id, workshop_id, title, body, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.WorkshopID, m.Title, m.Body, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workshop.ErrNotFound
		}
		return err
	}
	return nil
}

func (st workshopStore) GetMinutes(ctx context.Context, id string) (*workshop.Minutes, error) {
	var (
		m         workshop.Minutes
		finalized sql.NullTime
	)
	err := st.s.db.QueryRowContext(ctx, `
		select id, workshop_id, title, body, status, created_at, updated_at, finalized_at
		from meeting_minutes where id = $1
	`, id).Scan(&m.ID, &m.WorkshopID, &m.Title, &m.Body, &m.Status, &m.CreatedAt, &m.UpdatedAt, &finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workshop.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if finalized.Valid {
		t := finalized.Time
		m.FinalizedAt = &t
	}
	return &m, nil
}

func (st workshopStore) ListMinutes(ctx context.Context, workshopID string) ([]workshop.Minutes, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select id, workshop_id, title, body, status, created_at, updated_at, finalized_at
		from meeting_minutes
		where workshop_id = $1
		order by created_at
	`, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workshop.Minutes
	for rows.Next() {
		var (
			m         workshop.Minutes
			finalized sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.WorkshopID, &m.Title, &m.Body, &m.Status, &m.CreatedAt, &m.UpdatedAt, &finalized); err != nil {
			return nil, err
		}
		if finalized.Valid {
			t := finalized.Time
			m.FinalizedAt = &t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FinalizeMinutes moves draft to final with a guarded write. Zero rows
// affected means the document already left draft.
func (st workshopStore) FinalizeMinutes(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := st.s.db.ExecContext(ctx, `
		update meeting_minutes
		set status = 'final', updated_at = $2, finalized_at = $2
		where id = $1 and status = 'draft'
	`, id, at)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}
