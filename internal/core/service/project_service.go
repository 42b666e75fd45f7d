package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// ProjectService serves branch-isolated project records.
type ProjectService struct {
	projects ports.ProjectRepository
	access   *AccessEnforcer
}

func NewProjectService(projects ports.ProjectRepository, access *AccessEnforcer) *ProjectService {
	return &ProjectService{projects: projects, access: access}
}

func (s *ProjectService) List(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Project, error) {
	scope := ReadableBranches(p, domain.ResourceProjects)
	if len(scope) == 0 {
		return []*domain.Project{}, nil
	}
	limit, offset = pageBounds(limit, offset)

	projects, err := s.projects.List(ctx, domain.BranchFilter{Branches: scope, Limit: limit, Offset: offset})
	if err != nil {
		return nil, domain.SystemError("list projects", err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, p *domain.Principal, id string) (*domain.Project, error) {
	scope := ReadableBranches(p, domain.ResourceProjects)
	if len(scope) == 0 {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	project, err := s.projects.FindByID(ctx, id, scope)
	if err != nil {
		return nil, recordError("project", id, err)
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, p *domain.Principal, id string, patch domain.ProjectPatch) (*domain.Project, error) {
	switch {
	case patch.Empty():
		return nil, domain.ValidationError("nothing to update")
	case patch.Name != nil && strings.TrimSpace(*patch.Name) == "":
		return nil, domain.ValidationError("name must not be empty")
	case patch.Status != nil && !patch.Status.Valid():
		return nil, domain.ValidationError("unknown status %q", *patch.Status)
	}

	current, err := s.projects.FindByID(ctx, id, domain.AllBranches())
	if err != nil {
		return nil, recordError("project", id, err)
	}
	target := Target{Resource: domain.ResourceProjects, ID: current.ID, Branch: current.Branch}
	if err := s.access.Authorize(ctx, p, target, domain.ActionManage); err != nil {
		return nil, err
	}

	updated, err := s.projects.Update(ctx, current.ID, patch)
	if err != nil {
		return nil, recordError("project", id, err)
	}
	return updated, nil
}
