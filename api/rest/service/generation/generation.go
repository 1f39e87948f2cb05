package generation

import (
	"context"

	gen "github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/lineage"
	"github.com/easel-cloud/easel/internal/models"
	"github.com/easel-cloud/easel/pkg/db"
	"github.com/easel-cloud/easel/pkg/env"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Generation interface {
	WithDatabase(*gorm.DB) Generation
	Create(*gen.CreateRequest) (*models.Generation, error)
	Get(uuid.UUID) (*models.Generation, error)
	ListByBoard(uuid.UUID, *gen.ListRequest) (models.Generations, error)
	Cancel(uuid.UUID) error
	Ancestry(tenantID, id uuid.UUID, maxDepth int) (*lineage.Node, error)
	Descendants(tenantID, id uuid.UUID, maxDepth int) (*lineage.Node, error)
}

type generationService struct {
	ctx context.Context
	db  *gorm.DB
}

func Service(ctx context.Context) Generation {
	return &generationService{
		ctx: ctx,
		db:  db.Connection(),
	}
}

func (s *generationService) WithDatabase(conn *gorm.DB) Generation {
	s.db = conn
	return s
}

func (s *generationService) store() *gen.Store {
	return gen.NewStore(s.db)
}

func (s *generationService) Create(req *gen.CreateRequest) (*models.Generation, error) {
	return s.store().Create(s.ctx, req)
}

func (s *generationService) Get(id uuid.UUID) (*models.Generation, error) {
	return s.store().Get(s.ctx, id)
}

func (s *generationService) ListByBoard(boardID uuid.UUID, req *gen.ListRequest) (models.Generations, error) {
	return s.store().ListByBoard(s.ctx, boardID, req)
}

func (s *generationService) Cancel(id uuid.UUID) error {
	return s.store().Cancel(s.ctx, id)
}

func (s *generationService) resolver() *lineage.Resolver {
	return lineage.NewResolver(s.db, env.Variables().LineageMaxDepth)
}

func (s *generationService) Ancestry(tenantID, id uuid.UUID, maxDepth int) (*lineage.Node, error) {
	return s.resolver().Ancestry(s.ctx, tenantID, id, maxDepth)
}

func (s *generationService) Descendants(tenantID, id uuid.UUID, maxDepth int) (*lineage.Node, error) {
	return s.resolver().Descendants(s.ctx, tenantID, id, maxDepth)
}
