package lineage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/easel-cloud/easel/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
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

func seedGeneration(t *testing.T, db *gorm.DB, tenantID uuid.UUID) *models.Generation {
	t.Helper()
	gen := &models.Generation{
		ID:            uuid.New(),
		TenantID:      tenantID,
		BoardID:       uuid.New(),
		GeneratorName: "test",
		ArtifactType:  models.ArtifactTypeImage,
		Status:        models.GenerationStatusCompleted,
	}
	require.NoError(t, db.Create(gen).Error)
	return gen
}

func seedEdge(t *testing.T, db *gorm.DB, genID, inputID uuid.UUID, role string, position int) {
	t.Helper()
	require.NoError(t, db.Create(&models.GenerationInput{
		GenerationID: genID,
		InputID:      inputID,
		Role:         role,
		Position:     position,
		CreatedAt:    time.Now().UTC(),
	}).Error)
}

func TestAncestryWalksInputEdges(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	base := seedGeneration(t, db, tenant)
	style := seedGeneration(t, db, tenant)
	derived := seedGeneration(t, db, tenant)
	seedEdge(t, db, derived.ID, base.ID, "reference image", 0)
	seedEdge(t, db, derived.ID, style.ID, "style", 1)

	tree, err := resolver.Ancestry(ctx, tenant, derived.ID, 0)
	require.NoError(t, err)

	require.Equal(t, derived.ID, tree.Generation.ID)
	require.Empty(t, tree.Role)
	require.Equal(t, 0, tree.Depth)
	require.Len(t, tree.Links, 2)
	require.Equal(t, base.ID, tree.Links[0].Generation.ID)
	require.Equal(t, "reference image", tree.Links[0].Role)
	require.Equal(t, 1, tree.Links[0].Depth)
	require.Equal(t, style.ID, tree.Links[1].Generation.ID)
}

func TestDescendantsWalksEdgesDownward(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	base := seedGeneration(t, db, tenant)
	child := seedGeneration(t, db, tenant)
	grandchild := seedGeneration(t, db, tenant)
	seedEdge(t, db, child.ID, base.ID, "reference image", 0)
	seedEdge(t, db, grandchild.ID, child.ID, "reference image", 0)

	tree, err := resolver.Descendants(ctx, tenant, base.ID, 0)
	require.NoError(t, err)

	require.Len(t, tree.Links, 1)
	require.Equal(t, child.ID, tree.Links[0].Generation.ID)
	require.Len(t, tree.Links[0].Links, 1)
	require.Equal(t, grandchild.ID, tree.Links[0].Links[0].Generation.ID)
	require.Equal(t, 2, tree.Links[0].Links[0].Depth)
}

func TestAncestryTerminatesOnCycle(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	a := seedGeneration(t, db, tenant)
	b := seedGeneration(t, db, tenant)
	seedEdge(t, db, a.ID, b.ID, "reference image", 0)
	seedEdge(t, db, b.ID, a.ID, "reference image", 0)

	tree, err := resolver.Ancestry(ctx, tenant, a.ID, 0)
	require.NoError(t, err)

	require.Len(t, tree.Links, 1)
	require.Equal(t, b.ID, tree.Links[0].Generation.ID)
	// The edge back to a closes the cycle and is not followed.
	require.Empty(t, tree.Links[0].Links)
}

func TestAncestryHonorsMaxDepth(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	chain := make([]*models.Generation, 30)
	for i := range chain {
		chain[i] = seedGeneration(t, db, tenant)
		if i > 0 {
			seedEdge(t, db, chain[i].ID, chain[i-1].ID, "reference image", 0)
		}
	}

	tree, err := resolver.Ancestry(ctx, tenant, chain[len(chain)-1].ID, 5)
	require.NoError(t, err)

	depth := 0
	for node := tree; len(node.Links) > 0; node = node.Links[0] {
		depth = node.Links[0].Depth
	}
	require.Equal(t, 5, depth)
}

func TestResolverCapsRequestedDepth(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 3)
	ctx := context.Background()

	chain := make([]*models.Generation, 10)
	for i := range chain {
		chain[i] = seedGeneration(t, db, tenant)
		if i > 0 {
			seedEdge(t, db, chain[i].ID, chain[i-1].ID, "reference image", 0)
		}
	}

	tree, err := resolver.Ancestry(ctx, tenant, chain[len(chain)-1].ID, 100)
	require.NoError(t, err)

	depth := 0
	for node := tree; len(node.Links) > 0; node = node.Links[0] {
		depth = node.Links[0].Depth
	}
	require.Equal(t, 3, depth)
}

func TestAncestrySkipsForeignTenantInputs(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	foreign := seedGeneration(t, db, uuid.New())
	mine := seedGeneration(t, db, tenant)
	derived := seedGeneration(t, db, tenant)
	seedEdge(t, db, derived.ID, foreign.ID, "reference image", 0)
	seedEdge(t, db, derived.ID, mine.ID, "style", 1)

	tree, err := resolver.Ancestry(ctx, tenant, derived.ID, 0)
	require.NoError(t, err)

	require.Len(t, tree.Links, 1)
	require.Equal(t, mine.ID, tree.Links[0].Generation.ID)
}

func TestAncestryRejectsForeignRoot(t *testing.T) {
	db := openTestDB(t)
	resolver := NewResolver(db, 0)

	gen := seedGeneration(t, db, uuid.New())

	_, err := resolver.Ancestry(context.Background(), uuid.New(), gen.ID, 0)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAnonymousCallerGetsRootOnly(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)

	base := seedGeneration(t, db, tenant)
	derived := seedGeneration(t, db, tenant)
	seedEdge(t, db, derived.ID, base.ID, "reference image", 0)

	tree, err := resolver.Ancestry(context.Background(), uuid.Nil, derived.ID, 0)
	require.NoError(t, err)
	require.Equal(t, derived.ID, tree.Generation.ID)
	require.Empty(t, tree.Links)
}

func TestSharedAncestorAppearsPerPath(t *testing.T) {
	db := openTestDB(t)
	tenant := uuid.New()
	resolver := NewResolver(db, 0)
	ctx := context.Background()

	base := seedGeneration(t, db, tenant)
	left := seedGeneration(t, db, tenant)
	right := seedGeneration(t, db, tenant)
	merged := seedGeneration(t, db, tenant)
	seedEdge(t, db, left.ID, base.ID, "reference image", 0)
	seedEdge(t, db, right.ID, base.ID, "reference image", 0)
	seedEdge(t, db, merged.ID, left.ID, "reference image", 0)
	seedEdge(t, db, merged.ID, right.ID, "style", 1)

	tree, err := resolver.Ancestry(ctx, tenant, merged.ID, 0)
	require.NoError(t, err)

	require.Len(t, tree.Links, 2)
	for _, branch := range tree.Links {
		require.Len(t, branch.Links, 1)
		require.Equal(t, base.ID, branch.Links[0].Generation.ID)
	}
}
