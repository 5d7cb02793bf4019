package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Genealogy relations
const (
	RelationMerge = "merge"
)

// GenealogyLink is one parent-to-child traceability edge.
type GenealogyLink struct {
	ID         string    `db:"id" json:"id"`
	ParentLPID string    `db:"parent_lp_id" json:"parent_lp_id"`
	ChildLPID  string    `db:"child_lp_id" json:"child_lp_id"`
	Relation   string    `db:"relation" json:"relation"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// GenealogyRepository persists license plate traceability edges.
type GenealogyRepository struct {
	db *database.DB
}

// NewGenealogyRepository creates a new genealogy repository
func NewGenealogyRepository(db *database.DB) *GenealogyRepository {
	return &GenealogyRepository{db: db}
}

// LinkMerge records one edge per source plate pointing at the merged plate.
func (r *GenealogyRepository) LinkMerge(ctx context.Context, sourceLPIDs []string, childLPID string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO lp_genealogy (id, org_id, parent_lp_id, child_lp_id, relation)
			VALUES ($1, $2, $3, $4, $5)
		`
		for _, parentID := range sourceLPIDs {
			if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), orgID, parentID, childLPID, RelationMerge); err != nil {
				return err
			}
		}
		return nil
	})
}

// Parents returns the traceability edges pointing at a license plate.
func (r *GenealogyRepository) Parents(ctx context.Context, childLPID string) ([]*GenealogyLink, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var links []*GenealogyLink
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, parent_lp_id, child_lp_id, relation, created_at
			FROM lp_genealogy WHERE child_lp_id = $1 ORDER BY created_at
		`
		return r.db.SelectContext(ctx, &links, query, childLPID)
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}
