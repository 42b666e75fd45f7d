package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/core/domain"
	"github.com/branchdesk/opshub/internal/core/ports"
)

type AuditHandler struct {
	service ports.AuditService
}

func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List handles GET /audit. Results are limited to the caller's branches.
//
// @Summary      Recent security audit events
// @Tags         audit
// @Produce      json
// @Security     SessionCookie
// @Param        type   query     string  false  "Event type, e.g. branch_violation"
// @Param        limit  query     int     false  "Max events (max 200)"
// @Success      200    {array}   domain.AuditEvent
// @Failure      403    {object}  map[string]string
// @Router       /audit [get]
func (h *AuditHandler) List(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	limit, _, err := pageParams(c)
	if err != nil {
		return err
	}
	events, err := h.service.Recent(c.Request().Context(), p, domain.AuditFilter{
		Type:  domain.AuditEventType(c.QueryParam("type")),
		Limit: limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}
