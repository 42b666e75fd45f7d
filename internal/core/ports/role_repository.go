package ports

import (
	"context"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// RoleRepository is the role store. Users reference roles by id.
type RoleRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, branch domain.Branch, name string) (*domain.Role, error)
	// List returns roles whose branch is in branches. An empty slice returns none.
	List(ctx context.Context, branches []domain.Branch) ([]*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) (*domain.Role, error)
	Update(ctx context.Context, role *domain.Role) error
}
