package generation

import (
	"net/http"
	"strconv"
	"strings"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	gen "github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func ListByBoard(c echo.Context) error {
	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	req, err := parseListRequest(c)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(err)
	}

	gens, err := svc.Service(c.Request().Context()).ListByBoard(boardID, req)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.JSON(http.StatusOK, gens)
}

func parseListRequest(c echo.Context) (req *gen.ListRequest, err error) {
	req = &gen.ListRequest{
		Status: models.GenerationStatus(c.QueryParam("status")),
	}

	if limit := c.QueryParam("limit"); limit != "" {
		if req.Limit, err = strconv.Atoi(limit); err != nil {
			return nil, err
		}
	}

	if offset := c.QueryParam("offset"); offset != "" {
		if req.Offset, err = strconv.Atoi(offset); err != nil {
			return nil, err
		}
	}

	if orderBy := c.QueryParam("order_by"); orderBy != "" {
		req.OrderBy = strings.Split(orderBy, ",")
	}

	return
}
