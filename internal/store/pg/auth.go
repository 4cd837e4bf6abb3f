package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/atelierhq/atelier/internal/auth"
)

type userStore struct{ s *Store }

var _ auth.UserStore = userStore{}

const userColumns = `id, workshop_id, email, display_name, password_hash, role, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(&u.ID, &u.WorkshopID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = auth.ParseRole(role)
	return &u, nil
}

func (st userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into users (id, workshop_id, email, display_name, password_hash, role, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.WorkshopID, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (st userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(st.s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where id = $1
	`, id))
}

func (st userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(st.s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where email = $1
	`, email))
}

func (st userStore) ListByWorkshop(ctx context.Context, workshopID string) ([]*auth.User, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select `+userColumns+` from users where workshop_id = $1 order by email
	`, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (st userStore) Update(ctx context.Context, u *auth.User) error {
	res, err := st.s.db.ExecContext(ctx, `
		update users
		set email = $2, display_name = $3, password_hash = $4, role = $5, status = $6, updated_at = $7
		where id = $1
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), u.Status, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (st userStore) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	res, err := st.s.db.ExecContext(ctx, `delete from users where email = $1`, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type grantStore struct{ s *Store }

var _ auth.GrantStore = grantStore{}

func (st grantStore) GrantsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select capability from user_grants where user_id = $1 order by capability
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		grants = append(grants, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

type refreshStore struct{ s *Store }

var _ auth.RefreshTokenStore = refreshStore{}

func (st refreshStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := st.s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, tok.Revoked)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (st refreshStore) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := st.s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens where id = $1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (st refreshStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := st.s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (st refreshStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := st.s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where user_id = $1`, userID)
	return err
}
