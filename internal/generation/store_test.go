package generation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Generation{}, &models.GenerationInput{}))
	return db
}

func createPending(t *testing.T, store *Store, tenantID uuid.UUID, inputs ...InputRef) *models.Generation {
	t.Helper()
	gen, err := store.Create(context.Background(), &CreateRequest{
		TenantID:      tenantID,
		BoardID:       uuid.New(),
		UserID:        uuid.New(),
		GeneratorName: "sdxl",
		ArtifactType:  models.ArtifactTypeImage,
		InputParams:   datatypes.JSONMap{"prompt": "a red fox"},
		Inputs:        inputs,
	})
	require.NoError(t, err)
	return gen
}

func TestCreatePersistsInputEdges(t *testing.T) {
	store := NewStore(openTestDB(t))
	tenantID := uuid.New()

	base := createPending(t, store, tenantID)
	derived := createPending(t, store, tenantID, InputRef{ID: base.ID, Role: "reference image"})

	loaded, err := store.Get(context.Background(), derived.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusPending, loaded.Status)
	require.Len(t, loaded.Inputs, 1)
	require.Equal(t, base.ID, loaded.Inputs[0].InputID)
	require.Equal(t, "reference image", loaded.Inputs[0].Role)
}

func TestCreateRejectsCrossTenantInput(t *testing.T) {
	store := NewStore(openTestDB(t))

	other := createPending(t, store, uuid.New())

	_, err := store.Create(context.Background(), &CreateRequest{
		TenantID:      uuid.New(),
		BoardID:       uuid.New(),
		GeneratorName: "sdxl",
		ArtifactType:  models.ArtifactTypeImage,
		Inputs:        []InputRef{{ID: other.ID, Role: "reference image"}},
	})
	require.ErrorIs(t, err, ErrTenantMismatch)
}

func TestApplyProgressSetsStartedAtOnce(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 5, ""))

	first, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	require.Nil(t, first.CompletedAt)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 50, ""))

	second, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, first.StartedAt.UnixNano(), second.StartedAt.UnixNano())
}

func TestApplyProgressIsMonotonic(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 60, ""))
	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 30, ""))

	loaded, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, float64(60), loaded.Progress)
}

func TestApplyProgressRejectsTerminalTransition(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusFailed, 0, "provider exploded"))

	err := store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 10, "")
	require.ErrorIs(t, err, ErrTerminalStatus)

	loaded, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusFailed, loaded.Status)
	require.Equal(t, "provider exploded", loaded.ErrorMessage)
	require.NotNil(t, loaded.CompletedAt)
}

func TestFinalizeSetsResultFields(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 5, ""))
	require.NoError(t, store.Finalize(ctx, gen.ID, &FinalizeRequest{
		StorageURL:   "s3://out.png",
		ThumbnailURL: "s3://out_thumb.png",
		Metadata:     datatypes.JSONMap{"width": 1024},
	}))

	loaded, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusCompleted, loaded.Status)
	require.Equal(t, float64(100), loaded.Progress)
	require.Equal(t, "s3://out.png", loaded.StorageURL)
	require.NotNil(t, loaded.CompletedAt)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.Finalize(ctx, gen.ID, &FinalizeRequest{StorageURL: "s3://one.png"}))
	require.NoError(t, store.Finalize(ctx, gen.ID, &FinalizeRequest{StorageURL: "s3://two.png"}))

	loaded, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, "s3://one.png", loaded.StorageURL)
}

func TestFinalizeSiblingCarriesBatchMetadata(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()
	gen := createPending(t, store, uuid.New())
	require.NoError(t, store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 5, ""))

	primary, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)

	sibling, err := store.FinalizeSibling(ctx, primary, &generator.Artifact{
		Kind:       models.ArtifactTypeImage,
		StorageURL: "s3://sibling.png",
		Metadata:   datatypes.JSONMap{"width": 512},
	}, "batch-1", 1, 3)
	require.NoError(t, err)

	loaded, err := store.Get(ctx, sibling.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusCompleted, loaded.Status)
	require.Equal(t, "batch-1", loaded.OutputMetadata[models.MetadataBatchID])
	require.NotNil(t, loaded.ParentGenerationID)
	require.Equal(t, primary.ID, *loaded.ParentGenerationID)
	require.Equal(t, primary.TenantID, loaded.TenantID)
}

func TestCancelBeforeProcessing(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.Cancel(ctx, gen.ID))

	err := store.ApplyProgress(ctx, gen.ID, models.GenerationStatusProcessing, 5, "")
	require.ErrorIs(t, err, ErrTerminalStatus)
}

func TestSetExternalJobID(t *testing.T) {
	store := NewStore(openTestDB(t))
	gen := createPending(t, store, uuid.New())
	ctx := context.Background()

	require.NoError(t, store.SetExternalJobID(ctx, gen.ID, "prov-42"))

	loaded, err := store.Get(ctx, gen.ID)
	require.NoError(t, err)
	require.Equal(t, "prov-42", loaded.ExternalJobID)
}

func TestReapStuck(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	stuck := createPending(t, store, uuid.New())
	require.NoError(t, store.ApplyProgress(ctx, stuck.ID, models.GenerationStatusProcessing, 5, ""))

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.DB().
		Model(&models.Generation{}).
		Where("id = ?", stuck.ID).
		Update("started_at", old).Error)

	fresh := createPending(t, store, uuid.New())
	require.NoError(t, store.ApplyProgress(ctx, fresh.ID, models.GenerationStatusProcessing, 5, ""))

	reaped, err := store.ReapStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), reaped)

	loaded, err := store.Get(ctx, stuck.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusFailed, loaded.Status)

	untouched, err := store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.GenerationStatusProcessing, untouched.Status)
}
