package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/branchdesk/opshub/internal/api/middleware"
	"github.com/branchdesk/opshub/internal/core/domain"
)

// ctxPrincipal returns the principal attached by the Session middleware. Its
// absence means the route was registered without the session chain.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

// bindValid binds the request body into req and runs the validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.ValidationError("invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

// pageParams reads the optional limit and offset query parameters.
func pageParams(c echo.Context) (limit, offset int64, err error) {
	if err := echo.QueryParamsBinder(c).
		Int64("limit", &limit).
		Int64("offset", &offset).
		BindError(); err != nil {
		return 0, 0, domain.ValidationError("limit and offset must be integers")
	}
	if limit < 0 || offset < 0 {
		return 0, 0, domain.ValidationError("limit and offset must not be negative")
	}
	return limit, offset, nil
}
