package repository

import (
	"context"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
)

// UserRepository exposes persistence for users within one tenant store.
// Implementations are bound to a resolved store handle, so no tenant
// identifier appears in the method signatures.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByExternalID(ctx context.Context, externalID string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// ListExternalIDs is for diagnostics only.
	ListExternalIDs(ctx context.Context) ([]string, error)
}
