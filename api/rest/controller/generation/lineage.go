package generation

import (
	"errors"
	"net/http"
	"strconv"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	"github.com/easel-cloud/easel/internal/lineage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func Ancestry(c echo.Context) error {
	return lineageTree(c, svc.Service(c.Request().Context()).Ancestry)
}

func Descendants(c echo.Context) error {
	return lineageTree(c, svc.Service(c.Request().Context()).Descendants)
}

func lineageTree(c echo.Context, resolve func(tenantID, id uuid.UUID, maxDepth int) (*lineage.Node, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	tenantID, err := TenantOf(c)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	maxDepth := 0
	if raw := c.QueryParam("max_depth"); raw != "" {
		if maxDepth, err = strconv.Atoi(raw); err != nil {
			return echo.ErrBadRequest.SetInternal(err)
		}
	}

	tree, err := resolve(tenantID, id, maxDepth)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.JSON(http.StatusOK, tree)
}
