package lineage

import (
	"context"
	"errors"

	"github.com/easel-cloud/easel/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMaxDepth bounds lineage traversal when the caller does not
// request a depth of its own.
const DefaultMaxDepth = 25

// Node is one generation in a lineage tree. Role is the edge role
// that connected it to the node it was reached from; it is empty on
// the root. Because lineage is a DAG, the same generation can appear
// under several nodes when it is reachable along several paths.
type Node struct {
	Generation *models.Generation `json:"generation"`
	Role       string             `json:"role,omitempty"`
	Depth      int                `json:"depth"`
	Links      []*Node            `json:"links,omitempty"`
}

// Resolver walks generation input edges in either direction, scoped
// to a single tenant.
type Resolver struct {
	db       *gorm.DB
	maxDepth int
}

func NewResolver(db *gorm.DB, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{db: db, maxDepth: maxDepth}
}

// Ancestry returns the tree of generations the given one was derived
// from, following input edges upward. The root must exist and belong
// to the tenant; referenced ancestors that have vanished or belong to
// another tenant are silently omitted.
func (r *Resolver) Ancestry(ctx context.Context, tenantID, id uuid.UUID, maxDepth int) (*Node, error) {
	return r.resolve(ctx, tenantID, id, maxDepth, r.parentEdges)
}

// Descendants returns the tree of generations derived from the given
// one, following input edges downward.
func (r *Resolver) Descendants(ctx context.Context, tenantID, id uuid.UUID, maxDepth int) (*Node, error) {
	return r.resolve(ctx, tenantID, id, maxDepth, r.childEdges)
}

type edge struct {
	ID   uuid.UUID
	Role string
}

type edgeFunc func(ctx context.Context, id uuid.UUID) ([]edge, error)

func (r *Resolver) resolve(ctx context.Context, tenantID, id uuid.UUID, maxDepth int, edges edgeFunc) (*Node, error) {
	if maxDepth <= 0 || maxDepth > r.maxDepth {
		maxDepth = r.maxDepth
	}

	root, err := r.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	node := &Node{Generation: root}

	// Without a tenant there is nothing to scope the traversal to, so
	// only the root itself is returned.
	if tenantID == uuid.Nil {
		return node, nil
	}

	onPath := map[uuid.UUID]bool{id: true}
	if err := r.expand(ctx, tenantID, node, maxDepth, onPath, edges); err != nil {
		return nil, err
	}
	return node, nil
}

// expand attaches linked nodes recursively. The onPath set tracks the
// current traversal path only, so shared ancestors still appear under
// every path that reaches them while cycles terminate.
func (r *Resolver) expand(ctx context.Context, tenantID uuid.UUID, node *Node, maxDepth int, onPath map[uuid.UUID]bool, edges edgeFunc) error {
	if node.Depth >= maxDepth {
		return nil
	}

	linked, err := edges(ctx, node.Generation.ID)
	if err != nil {
		return err
	}

	for _, e := range linked {
		if onPath[e.ID] {
			continue
		}

		gen, err := r.load(ctx, tenantID, e.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		child := &Node{Generation: gen, Role: e.Role, Depth: node.Depth + 1}
		node.Links = append(node.Links, child)

		onPath[e.ID] = true
		if err := r.expand(ctx, tenantID, child, maxDepth, onPath, edges); err != nil {
			return err
		}
		delete(onPath, e.ID)
	}

	return nil
}

func (r *Resolver) load(ctx context.Context, tenantID, id uuid.UUID) (*models.Generation, error) {
	gen := &models.Generation{}
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if tenantID != uuid.Nil {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if err := q.First(gen).Error; err != nil {
		return nil, err
	}
	return gen, nil
}

func (r *Resolver) parentEdges(ctx context.Context, id uuid.UUID) ([]edge, error) {
	var rows []models.GenerationInput
	err := r.db.WithContext(ctx).
		Where("generation_id = ?", id).
		Order("position").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	edges := make([]edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, edge{ID: row.InputID, Role: row.Role})
	}
	return edges, nil
}

func (r *Resolver) childEdges(ctx context.Context, id uuid.UUID) ([]edge, error) {
	var rows []models.GenerationInput
	err := r.db.WithContext(ctx).
		Where("input_id = ?", id).
		Order("created_at").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	edges := make([]edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, edge{ID: row.GenerationID, Role: row.Role})
	}
	return edges, nil
}
