package generation

import (
	"errors"
	"net/http"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// TenantHeader carries the caller's tenant id. Upstream auth fills it
// in; easel only scopes queries by it.
const TenantHeader = "X-Tenant-ID"

// TenantOf parses the tenant header. A missing header yields
// uuid.Nil and no error; a malformed one is an error.
func TenantOf(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(TenantHeader)
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	tenantID, err := TenantOf(c)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	g, err := svc.Service(c.Request().Context()).Get(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	// A caller with a tenant cannot see other tenants' records.
	if tenantID != uuid.Nil && g.TenantID != tenantID {
		return echo.ErrNotFound
	}

	return c.JSON(http.StatusOK, g)
}
