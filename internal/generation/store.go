package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/pkg/jsonmap"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrTerminalStatus is returned when a write would transition a
	// generation out of a terminal status.
	ErrTerminalStatus = errors.New("generation already in a terminal status")

	// ErrTenantMismatch is returned when an input edge references a
	// generation in a different tenant.
	ErrTenantMismatch = errors.New("input generation belongs to a different tenant")
)

// Store is the single write path for generation rows. The queue's
// per-job exclusivity means no two writers touch the same row
// concurrently; row-level transaction isolation covers the rest.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	if db == nil {
		panic("generation store requires a database connection")
	}
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// InputRef names one prior generation used as input, with its
// declared role.
type InputRef struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role,omitempty"`
}

type CreateRequest struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	BoardID            uuid.UUID
	UserID             uuid.UUID
	GeneratorName      string
	ArtifactType       models.ArtifactType
	InputParams        datatypes.JSONMap
	Inputs             []InputRef
	ParentGenerationID *uuid.UUID
}

// Create persists a new pending generation and its input edges in one
// transaction. Callers must not enqueue the job id before Create
// returns: the worker has to find a readable row when it dequeues.
func (s *Store) Create(ctx context.Context, req *CreateRequest) (*models.Generation, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	gen := &models.Generation{
		ID:                 id,
		TenantID:           req.TenantID,
		BoardID:            req.BoardID,
		UserID:             req.UserID,
		GeneratorName:      req.GeneratorName,
		ArtifactType:       req.ArtifactType,
		InputParams:        req.InputParams,
		Status:             models.GenerationStatusPending,
		Progress:           0,
		ParentGenerationID: req.ParentGenerationID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, input := range req.Inputs {
			var count int64
			if err := tx.Model(&models.Generation{}).
				Where("id = ? AND tenant_id = ?", input.ID, req.TenantID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: %s", ErrTenantMismatch, input.ID)
			}
		}

		if err := tx.Create(gen).Error; err != nil {
			return err
		}

		for i, input := range req.Inputs {
			edge := &models.GenerationInput{
				GenerationID: gen.ID,
				InputID:      input.ID,
				Role:         input.Role,
				Position:     i,
			}
			if err := tx.Create(edge).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.GenerationsSubmittedTotal.
		WithLabelValues(req.GeneratorName, string(req.ArtifactType)).Inc()

	return gen, nil
}

// Get loads a generation with its input edges.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	gen := &models.Generation{}
	err := s.db.WithContext(ctx).
		Preload("Inputs").
		First(gen, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return gen, nil
}

type ListRequest struct {
	Limit   int
	Offset  int
	OrderBy []string
	Status  models.GenerationStatus
}

// ListByBoard returns generations on a board, newest first by default.
func (s *Store) ListByBoard(ctx context.Context, boardID uuid.UUID, req *ListRequest) (models.Generations, error) {
	gens := make(models.Generations, 0)
	q := s.db.WithContext(ctx).Where("board_id = ?", boardID)

	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}

	if len(req.OrderBy) == 0 {
		q = q.Order("created_at DESC")
	}
	for _, orderBy := range req.OrderBy {
		q = q.Order(orderBy)
	}

	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}
	if req.Offset > 0 {
		q = q.Offset(req.Offset)
	}

	return gens, q.Find(&gens).Error
}

// ApplyProgress persists a status/progress transition. Progress is on
// the stored 0-100 scale and is clamped to be non-decreasing while
// processing. started_at is set the first time the status becomes
// processing; completed_at exactly when the status turns terminal.
func (s *Store) ApplyProgress(ctx context.Context, id uuid.UUID, status models.GenerationStatus, progress float64, errMsg string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gen := &models.Generation{}
		if err := tx.First(gen, "id = ?", id).Error; err != nil {
			return err
		}

		if !gen.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrTerminalStatus, gen.Status, status)
		}

		updates := map[string]interface{}{
			"status": string(status),
		}

		if progress > gen.Progress {
			updates["progress"] = progress
		}

		now := time.Now().UTC()
		if status == models.GenerationStatusProcessing && gen.StartedAt == nil {
			updates["started_at"] = now
		}
		if status.Terminal() && gen.CompletedAt == nil {
			updates["completed_at"] = now
		}
		if status == models.GenerationStatusFailed && errMsg != "" {
			updates["error_message"] = errMsg
		}

		return tx.Model(&models.Generation{}).
			Where("id = ?", id).
			Updates(updates).Error
	})

	if isContentionErr(err) {
		metrics.StoreContentionTotal.Inc()
	}
	if err == nil {
		metrics.ProgressPublishesTotal.WithLabelValues(string(status)).Inc()
	}

	return err
}

// SetExternalJobID durably records the upstream provider's job id.
// Unlike progress this is correctness-relevant and written
// immediately.
func (s *Store) SetExternalJobID(ctx context.Context, id uuid.UUID, externalID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("id = ?", id).
		Update("external_job_id", externalID).Error
}

// FinalizeRequest carries the result fields written on success.
type FinalizeRequest struct {
	StorageURL      string
	ThumbnailURL    string
	AdditionalFiles []string
	Metadata        datatypes.JSONMap
}

// Finalize marks a generation completed with its storage fields and
// output metadata. Finalizing an already-completed generation is a
// no-op so redeliveries stay idempotent.
func (s *Store) Finalize(ctx context.Context, id uuid.UUID, req *FinalizeRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gen := &models.Generation{}
		if err := tx.First(gen, "id = ?", id).Error; err != nil {
			return err
		}

		if gen.Status == models.GenerationStatusCompleted {
			return nil
		}
		if !gen.Status.CanTransition(models.GenerationStatusCompleted) {
			return fmt.Errorf("%w: %s -> completed", ErrTerminalStatus, gen.Status)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       string(models.GenerationStatusCompleted),
			"progress":     float64(100),
			"storage_url":  req.StorageURL,
			"completed_at": now,
		}
		if req.ThumbnailURL != "" {
			updates["thumbnail_url"] = req.ThumbnailURL
		}
		if len(req.AdditionalFiles) > 0 {
			updates["additional_files"] = datatypes.JSONSlice[string](req.AdditionalFiles)
		}
		if len(req.Metadata) > 0 {
			updates["output_metadata"] = jsonmap.Merge(gen.OutputMetadata, req.Metadata)
		}
		if gen.StartedAt == nil {
			updates["started_at"] = now
		}

		return tx.Model(&models.Generation{}).
			Where("id = ?", id).
			Updates(updates).Error
	})
}

// FinalizeSibling creates a completed generation row for a batch
// sibling artifact, inheriting request identity from the primary
// generation and pointing back at it as parent.
func (s *Store) FinalizeSibling(ctx context.Context, primary *models.Generation, art *generator.Artifact, batchID string, batchIndex, batchSize int) (*models.Generation, error) {
	id := art.GenerationID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := time.Now().UTC()
	parentID := primary.ID

	sibling := &models.Generation{
		ID:            id,
		TenantID:      primary.TenantID,
		BoardID:       primary.BoardID,
		UserID:        primary.UserID,
		GeneratorName: primary.GeneratorName,
		ArtifactType:  art.Kind,
		InputParams:   primary.InputParams,
		Status:        models.GenerationStatusCompleted,
		Progress:      100,
		StorageURL:    art.StorageURL,
		ThumbnailURL:  art.ThumbnailURL,
		OutputMetadata: jsonmap.Merge(art.Metadata, datatypes.JSONMap{
			models.MetadataBatchID:    batchID,
			models.MetadataBatchIndex: batchIndex,
			models.MetadataBatchSize:  batchSize,
		}),
		ParentGenerationID: &parentID,
		StartedAt:          primary.StartedAt,
		CompletedAt:        &now,
	}
	if len(art.AdditionalFiles) > 0 {
		sibling.AdditionalFiles = datatypes.JSONSlice[string](art.AdditionalFiles)
	}

	if err := s.db.WithContext(ctx).Create(sibling).Error; err != nil {
		return nil, err
	}

	metrics.BatchSiblingsTotal.WithLabelValues(primary.GeneratorName).Inc()

	return sibling, nil
}

// Cancel transitions a generation to cancelled. This is the
// out-of-band administrative lever; it does not preempt an in-flight
// provider call.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.ApplyProgress(ctx, id, models.GenerationStatusCancelled, 0, "")
}

// ReapStuck fails every generation that has been processing longer
// than timeout. Used by the janitor.
func (s *Store) ReapStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)

	result := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?",
			string(models.GenerationStatusProcessing), cutoff).
		Updates(map[string]interface{}{
			"status":        string(models.GenerationStatusFailed),
			"error_message": fmt.Sprintf("processing exceeded %s", timeout),
			"completed_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		metrics.JanitorReapsTotal.Add(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}

func isContentionErr(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
