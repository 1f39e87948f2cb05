package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	gen "github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

// Enqueuer hands a committed generation id to the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// Controller carries the process-scoped dependencies the stateless
// handlers in this package do not need.
type Controller struct {
	queue Enqueuer
}

func New(queue Enqueuer) *Controller {
	return &Controller{queue: queue}
}

type PostRequest struct {
	BoardID      string            `json:"board_id"`
	UserID       string            `json:"user_id"`
	Generator    string            `json:"generator"`
	ArtifactType string            `json:"artifact_type"`
	InputParams  datatypes.JSONMap `json:"input_params,omitempty"`
	Inputs       []gen.InputRef    `json:"inputs,omitempty"`
}

// Post accepts a generation request, commits the pending record and
// its input edges, and only then enqueues the job id. Enqueueing
// before the commit would let a worker dequeue an id with no readable
// row behind it.
func (ctrl *Controller) Post(c echo.Context) error {
	tenantID, err := TenantOf(c)
	if err != nil || tenantID == uuid.Nil {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("tenant header is required"))
	}

	req := &PostRequest{}
	if err := c.Bind(req); err != nil {
		return err
	}

	if req.Generator == "" {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("generator is required"))
	}

	artifactType := models.ArtifactType(req.ArtifactType)
	if !artifactType.Valid() {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("invalid artifact_type %q", req.ArtifactType))
	}

	boardID, err := uuid.Parse(req.BoardID)
	if err != nil {
		return echo.ErrBadRequest.SetInternal(fmt.Errorf("invalid board_id: %w", err))
	}

	var userID uuid.UUID
	if req.UserID != "" {
		if userID, err = uuid.Parse(req.UserID); err != nil {
			return echo.ErrBadRequest.SetInternal(fmt.Errorf("invalid user_id: %w", err))
		}
	}

	log.Info("creating generation",
		"tenant_id", tenantID,
		"board_id", boardID,
		"generator", req.Generator,
		"artifact_type", artifactType,
		"inputs", len(req.Inputs))

	ctx := c.Request().Context()

	g, err := svc.Service(ctx).Create(&gen.CreateRequest{
		TenantID:      tenantID,
		BoardID:       boardID,
		UserID:        userID,
		GeneratorName: req.Generator,
		ArtifactType:  artifactType,
		InputParams:   req.InputParams,
		Inputs:        req.Inputs,
	})
	if errors.Is(err, gen.ErrTenantMismatch) {
		return echo.ErrBadRequest.SetInternal(err)
	}
	if err != nil {
		log.Error("failed to create generation", "error", err)
		return echo.ErrInternalServerError.SetInternal(err)
	}

	if err := ctrl.queue.Enqueue(ctx, g.ID); err != nil {
		log.Error("failed to enqueue generation", "id", g.ID, "error", err)
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.JSON(http.StatusCreated, g)
}
