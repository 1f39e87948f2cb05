package generation

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	svc "github.com/easel-cloud/easel/api/rest/service/generation"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const downloadExpiry = 15 * time.Minute

// DownloadController serves short-lived artifact download links. It
// is separate from Controller so the queue-only wiring in tests does
// not need an object store.
type DownloadController struct {
	objects storage.ObjectStore
}

func NewDownload(objects storage.ObjectStore) *DownloadController {
	return &DownloadController{objects: objects}
}

type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (ctrl *DownloadController) Download(c echo.Context) error {
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
	if tenantID != uuid.Nil && g.TenantID != tenantID {
		return echo.ErrNotFound
	}

	if g.Status != models.GenerationStatusCompleted || g.StorageURL == "" {
		return echo.ErrConflict.SetInternal(fmt.Errorf("generation %s has no downloadable artifact", id))
	}

	url, err := ctrl.objects.PresignedURL(c.Request().Context(), g.StorageURL, downloadExpiry)
	if err != nil {
		return echo.ErrInternalServerError.SetInternal(err)
	}

	return c.JSON(http.StatusOK, DownloadResponse{
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(downloadExpiry),
	})
}
