package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ClientService serves branch-isolated client records.
type ClientService struct {
	clients ports.ClientRepository
	access  *AccessEnforcer
}

func NewClientService(clients ports.ClientRepository, access *AccessEnforcer) *ClientService {
	return &ClientService{clients: clients, access: access}
}

// List returns the clients p may view. The branch scope is part of the query.
func (s *ClientService) List(ctx context.Context, p *domain.Principal, limit, offset int64) ([]*domain.Client, error) {
	scope := ReadableBranches(p, domain.ResourceClients)
	if len(scope) == 0 {
		return []*domain.Client{}, nil
	}
	limit, offset = pageBounds(limit, offset)

	clients, err := s.clients.List(ctx, domain.BranchFilter{Branches: scope, Limit: limit, Offset: offset})
	if err != nil {
		return nil, domain.SystemError("list clients", err)
	}
	for _, c := range clients {
		redactClient(p, c)
	}
	return clients, nil
}

// Get returns one client. Records outside p's scope are reported as not found.
func (s *ClientService) Get(ctx context.Context, p *domain.Principal, id string) (*domain.Client, error) {
	scope := ReadableBranches(p, domain.ResourceClients)
	if len(scope) == 0 {
		return nil, fmt.Errorf("client %s: %w", id, domain.ErrNotFound)
	}
	c, err := s.clients.FindByID(ctx, id, scope)
	if err != nil {
		return nil, recordError("client", id, err)
	}
	redactClient(p, c)
	return c, nil
}

// Update applies patch after checking manage rights on the client's branch and
// on every sub-document the patch touches.
func (s *ClientService) Update(ctx context.Context, p *domain.Principal, id string, patch domain.ClientPatch) (*domain.Client, error) {
	if patch.Empty() {
		return nil, domain.ValidationError("nothing to update")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, domain.ValidationError("name must not be empty")
	}

	current, err := s.clients.FindByID(ctx, id, domain.AllBranches())
	if err != nil {
		return nil, recordError("client", id, err)
	}

	target := Target{Resource: domain.ResourceClients, ID: current.ID, Branch: current.Branch}
	if err := s.access.Authorize(ctx, p, target, domain.ActionManage); err != nil {
		return nil, err
	}
	for _, section := range patch.Sections() {
		st := target
		st.Branch = section.Branch()
		st.Section = section
		if err := s.access.Authorize(ctx, p, st, domain.ActionManage); err != nil {
			return nil, err
		}
	}

	updated, err := s.clients.Update(ctx, current.ID, patch)
	if err != nil {
		return nil, recordError("client", id, err)
	}
	redactClient(p, updated)
	return updated, nil
}

// redactClient drops the sub-documents p may not view.
func redactClient(p *domain.Principal, c *domain.Client) {
	if !canViewSection(p, domain.SectionAdmin) {
		c.AdminData = nil
	}
	if !canViewSection(p, domain.SectionWeb) {
		c.WebData = nil
	}
	if !canViewSection(p, domain.SectionCyber) {
		c.CyberData = nil
	}
}

func canViewSection(p *domain.Principal, section domain.ClientSection) bool {
	perm, ok := domain.PermissionFor(domain.ResourceClients, section.Branch(), domain.ActionView)
	return ok && CanAccess(p, section.Branch(), perm)
}

func pageBounds(limit, offset int64) (int64, int64) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func recordError(kind, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	if domain.IsDomainError(err) {
		return err
	}
	return domain.SystemError("load "+kind, err)
}
