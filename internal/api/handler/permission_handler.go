package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
)

type PermissionHandler struct{}

func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

type manifestResponse struct {
	Version     string                         `json:"version"`
	Permissions []domain.Permission            `json:"permissions"`
	Namespaces  map[string][]domain.Permission `json:"namespaces"`
}

// Manifest handles GET /permissions/manifest.
//
// @Summary      Permission catalog
// @Description  The static permission catalog used to render the role matrix.
// @Tags         permissions
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  manifestResponse
// @Failure      403  {object}  map[string]string
// @Router       /permissions/manifest [get]
func (h *PermissionHandler) Manifest(c echo.Context) error {
	catalog := domain.Catalog()
	return c.JSON(http.StatusOK, manifestResponse{
		Version:     catalog.Version(),
		Permissions: catalog.All(),
		Namespaces:  catalog.Grouped(),
	})
}
