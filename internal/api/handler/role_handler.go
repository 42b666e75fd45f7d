package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// RoleHandler serves the role management endpoints. Branch scoping and grant
// rules are enforced by the service.
type RoleHandler struct {
	service ports.RoleService
}

func NewRoleHandler(service ports.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

type createRoleRequest struct {
	Name        string   `json:"name"        validate:"required,min=2,max=64"`
	Branch      string   `json:"branch"      validate:"required,branch"`
	Permissions []string `json:"permissions" validate:"required,dive,permission"`
}

type updateRoleRequest struct {
	Name        *string  `json:"name,omitempty"        validate:"omitempty,min=2,max=64"`
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,dive,permission"`
}

// List handles GET /roles.
//
// @Summary      List roles visible to the caller
// @Tags         roles
// @Produce      json
// @Security     SessionCookie
// @Success      200  {array}   domain.Role
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /roles [get]
func (h *RoleHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	roles, err := h.service.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// Get handles GET /roles/:id.
//
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Security     SessionCookie
// @Param        id   path      string  true  "Role id"
// @Success      200  {object}  domain.Role
// @Failure      404  {object}  map[string]string
// @Router       /roles/{id} [get]
func (h *RoleHandler) Get(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	role, err := h.service.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

// Create handles POST /roles.
//
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string             true  "Anti-forgery token"
// @Param        body          body      createRoleRequest  true  "Role definition"
// @Success      201           {object}  domain.Role
// @Failure      403           {object}  map[string]string
// @Failure      409           {object}  map[string]string
// @Failure      422           {object}  map[string]string
// @Router       /roles [post]
func (h *RoleHandler) Create(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req createRoleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	role, err := h.service.Create(c.Request().Context(), p, ports.CreateRoleInput{
		Name:        req.Name,
		Branch:      domain.Branch(req.Branch),
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

// Update handles PATCH /roles/:id.
//
// @Summary      Rename a role or replace its permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string             true  "Anti-forgery token"
// @Param        id            path      string             true  "Role id"
// @Param        body          body      updateRoleRequest  true  "Fields to change"
// @Success      200           {object}  domain.Role
// @Failure      403           {object}  map[string]string
// @Failure      404           {object}  map[string]string
// @Failure      422           {object}  map[string]string
// @Router       /roles/{id} [patch]
func (h *RoleHandler) Update(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req updateRoleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.Name == nil && req.Permissions == nil {
		return domain.ValidationError("nothing to update")
	}
	role, err := h.service.Update(c.Request().Context(), p, c.Param("id"), ports.UpdateRoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}
