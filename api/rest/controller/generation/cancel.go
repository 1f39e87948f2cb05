package generation

import (
	"errors"
	"net/http"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	gen "github.com/easel-cloud/easel/internal/generation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Cancel marks a generation cancelled. It only takes effect before a
// worker finishes the job; a record already in a terminal status
// conflicts.
func Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	tenantID, err := TenantOf(c)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	ctx := c.Request().Context()
	service := svc.Service(ctx)

	g, err := service.Get(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}
	if tenantID != uuid.Nil && g.TenantID != tenantID {
		return echo.ErrNotFound
	}

	err = service.Cancel(id)
	if errors.Is(err, gen.ErrTerminalStatus) {
		return echo.ErrConflict.SetInternal(err)
	}
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.NoContent(http.StatusNoContent)
}
