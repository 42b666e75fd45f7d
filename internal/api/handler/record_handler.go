package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

// ClientHandler serves branch-tagged client records. Which rows and which
// sub-documents a caller sees is decided by the service.
type ClientHandler struct {
	service ports.ClientService
}

func NewClientHandler(service ports.ClientService) *ClientHandler {
	return &ClientHandler{service: service}
}

type clientPatchRequest struct {
	Name        *string           `json:"name,omitempty"         validate:"omitempty,min=1,max=128"`
	ContactName *string           `json:"contact_name,omitempty" validate:"omitempty,max=128"`
	Email       *string           `json:"email,omitempty"        validate:"omitempty,email"`
	AdminData   *domain.AdminData `json:"admin_data,omitempty"`
	WebData     *domain.WebData   `json:"web_data,omitempty"`
	CyberData   *domain.CyberData `json:"cyber_data,omitempty"`
}

// List handles GET /clients.
//
// @Summary      List clients in the caller's readable branches
// @Tags         clients
// @Produce      json
// @Security     SessionCookie
// @Param        limit   query     int  false  "Page size (max 200)"
// @Param        offset  query     int  false  "Rows to skip"
// @Success      200     {array}   domain.Client
// @Failure      403     {object}  map[string]string
// @Router       /clients [get]
func (h *ClientHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	clients, err := h.service.List(c.Request().Context(), p, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clients)
}

// Get handles GET /clients/:id.
//
// @Summary      Get a client
// @Tags         clients
// @Produce      json
// @Security     SessionCookie
// @Param        id   path      string  true  "Client id"
// @Success      200  {object}  domain.Client
// @Failure      404  {object}  map[string]string
// @Router       /clients/{id} [get]
func (h *ClientHandler) Get(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	client, err := h.service.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client)
}

// Update handles PATCH /clients/:id.
//
// @Summary      Update a client
// @Tags         clients
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string              true  "Anti-forgery token"
// @Param        id            path      string              true  "Client id"
// @Param        body          body      clientPatchRequest  true  "Fields to change"
// @Success      200           {object}  domain.Client
// @Failure      403           {object}  map[string]string
// @Failure      404           {object}  map[string]string
// @Router       /clients/{id} [patch]
func (h *ClientHandler) Update(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req clientPatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := domain.ClientPatch{
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		AdminData:   req.AdminData,
		WebData:     req.WebData,
		CyberData:   req.CyberData,
	}
	if patch.Empty() {
		return domain.ValidationError("nothing to update")
	}
	client, err := h.service.Update(c.Request().Context(), p, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client)
}

type ProjectHandler struct {
	service ports.ProjectService
}

func NewProjectHandler(service ports.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type projectPatchRequest struct {
	Name        *string    `json:"name,omitempty"        validate:"omitempty,min=1,max=128"`
	Status      *string    `json:"status,omitempty"      validate:"omitempty,oneof=planned active on_hold completed"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// List handles GET /projects.
//
// @Summary      List projects in the caller's readable branches
// @Tags         projects
// @Produce      json
// @Security     SessionCookie
// @Param        limit   query     int  false  "Page size (max 200)"
// @Param        offset  query     int  false  "Rows to skip"
// @Success      200     {array}   domain.Project
// @Router       /projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	projects, err := h.service.List(c.Request().Context(), p, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

// Get handles GET /projects/:id.
//
// @Summary      Get a project
// @Tags         projects
// @Produce      json
// @Security     SessionCookie
// @Param        id   path      string  true  "Project id"
// @Success      200  {object}  domain.Project
// @Failure      404  {object}  map[string]string
// @Router       /projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	project, err := h.service.Get(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Update handles PATCH /projects/:id.
//
// @Summary      Update a project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        X-CSRF-Token  header    string               true  "Anti-forgery token"
// @Param        id            path      string               true  "Project id"
// @Param        body          body      projectPatchRequest  true  "Fields to change"
// @Success      200           {object}  domain.Project
// @Failure      403           {object}  map[string]string
// @Failure      404           {object}  map[string]string
// @Router       /projects/{id} [patch]
func (h *ProjectHandler) Update(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req projectPatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := domain.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := domain.ProjectStatus(*req.Status)
		patch.Status = &status
	}
	if patch.Empty() {
		return domain.ValidationError("nothing to update")
	}
	project, err := h.service.Update(c.Request().Context(), p, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}
