package ports

import (
	"context"
	"time"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// UserRepository is the credential store. There is deliberately no delete:
// accounts move through statuses instead.
type UserRepository interface {
	// FindByIdentifier looks a user up by username or email, case-insensitively.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// List returns users whose branch is in filter.Branches.
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
	UpdateRole(ctx context.Context, id, roleID string, branch domain.Branch) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	RecordLoginFailure(ctx context.Context, id string) error
}
