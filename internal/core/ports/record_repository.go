package ports

import (
	"context"

	"github.com/branchdesk/opshub/internal/core/domain"
)

// ClientRepository persists branch-tagged client records. Every read takes the
// branch scope so foreign rows never leave the store.
type ClientRepository interface {
	List(ctx context.Context, filter domain.BranchFilter) ([]*domain.Client, error)
	FindByID(ctx context.Context, id string, branches []domain.Branch) (*domain.Client, error)
	Update(ctx context.Context, id string, patch domain.ClientPatch) (*domain.Client, error)
}

type ProjectRepository interface {
	List(ctx context.Context, filter domain.BranchFilter) ([]*domain.Project, error)
	FindByID(ctx context.Context, id string, branches []domain.Branch) (*domain.Project, error)
	Update(ctx context.Context, id string, patch domain.ProjectPatch) (*domain.Project, error)
}
