package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vidtube/vidtube-server/internal/domain"
)

// UserRepository is the persistence boundary for user records. Lookups return
// domain.ErrNotFound for missing records; Create returns domain.ErrConflict
// when the username or email unique index is violated.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetByUsernameOrEmail matches either unique field against the given
	// values. Callers pass the same identifier for both to resolve a login.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	// UpdateRefreshToken overwrites only the refresh_token column, bypassing
	// full-record validation. A nil token clears the active session.
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
}

type Repositories struct {
	User UserRepository
}
