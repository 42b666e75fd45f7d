package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type provisionUserRequest struct {
	Username  string `json:"username"   validate:"required,min=3,max=64"`
	Email     string `json:"email"      validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name"  validate:"max=64"`
	Password  string `json:"password"   validate:"required,min=8,max=256"`
	Branch    string `json:"branch"     validate:"required,branch"`
	RoleID    string `json:"role_id"    validate:"required"`
	Activate  bool   `json:"activate"`
}

type userStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active suspended"`
}

type userRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

// List handles GET /users.
//
// @Summary      List users in the caller's branches
// @Tags         users
// @Produce      json
// @Security     SessionCookie
// @Param        status  query     string  false  "pending, active or suspended"
// @Success      200     {array}   domain.User
// @Failure      403     {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	status := domain.UserStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return domain.ValidationError("status must be one of: pending active suspended")
	}
	users, err := h.service.List(c.Request().Context(), p, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Provision handles POST /users.
//
// @Summary      Provision a staff account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string                true  "Anti-forgery token"
// @Param        body          body      provisionUserRequest  true  "Account details"
// @Success      201           {object}  domain.User
// @Failure      403           {object}  map[string]string
// @Failure      409           {object}  map[string]string
// @Failure      422           {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) Provision(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req provisionUserRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := h.service.Provision(c.Request().Context(), p, ports.ProvisionUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Branch:    domain.Branch(req.Branch),
		RoleID:    req.RoleID,
		Activate:  req.Activate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// SetStatus handles PATCH /users/:id/status.
//
// @Summary      Change a user's lifecycle status
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string             true  "Anti-forgery token"
// @Param        id            path      string             true  "User id"
// @Param        body          body      userStatusRequest  true  "New status"
// @Success      200           {object}  domain.User
// @Failure      403           {object}  map[string]string
// @Failure      404           {object}  map[string]string
// @Router       /users/{id}/status [patch]
func (h *UserHandler) SetStatus(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req userStatusRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := h.service.SetStatus(c.Request().Context(), p, c.Param("id"), domain.UserStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// AssignRole handles PATCH /users/:id/role.
//
// @Summary      Assign a role to a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string           true  "Anti-forgery token"
// @Param        id            path      string           true  "User id"
// @Param        body          body      userRoleRequest  true  "Role id"
// @Success      200           {object}  domain.User
// @Failure      403           {object}  map[string]string
// @Failure      404           {object}  map[string]string
// @Router       /users/{id}/role [patch]
func (h *UserHandler) AssignRole(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req userRoleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := h.service.AssignRole(c.Request().Context(), p, c.Param("id"), req.RoleID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
