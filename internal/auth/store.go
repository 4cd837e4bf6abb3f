package auth

import "context"

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByWorkshop(ctx context.Context, workshopID string) ([]*User, error)
	Update(ctx context.Context, u *User) error
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

// GrantStore reads explicit per-user capability grants.
type GrantStore interface {
	GrantsForUser(ctx context.Context, userID string) ([]string, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
