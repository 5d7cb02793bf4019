package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Over-consumption request statuses
const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

// OverConsumptionRequest asks a supervisor to authorize consumption beyond
// the work order's planned quantity.
type OverConsumptionRequest struct {
	ID             string          `db:"id" json:"id"`
	WorkOrderID    string          `db:"work_order_id" json:"work_order_id"`
	ProductID      string          `db:"product_id" json:"product_id"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	UoM            string          `db:"uom" json:"uom"`
	Reason         string          `db:"reason" json:"reason"`
	Status         string          `db:"status" json:"status"`
	RequestedBy    string          `db:"requested_by" json:"requested_by"`
	DecidedBy      *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt      *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	DecisionReason *string         `db:"decision_reason" json:"decision_reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

const requestColumns = `
	id, work_order_id, product_id, quantity, uom, reason, status,
	requested_by, decided_by, decided_at, decision_reason, created_at, updated_at`

// OverConsumptionRepository persists over-consumption approval requests.
type OverConsumptionRepository struct {
	db *database.DB
}

// NewOverConsumptionRepository creates a new over-consumption repository
func NewOverConsumptionRepository(db *database.DB) *OverConsumptionRepository {
	return &OverConsumptionRepository{db: db}
}

// Create inserts a new pending request.
func (r *OverConsumptionRepository) Create(ctx context.Context, req *OverConsumptionRequest) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = RequestPending

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO over_consumption_requests (id, org_id, work_order_id, product_id, quantity, uom, reason, status, requested_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			req.ID, orgID, req.WorkOrderID, req.ProductID, req.Quantity,
			req.UoM, req.Reason, req.Status, req.RequestedBy,
		).Scan(&req.CreatedAt, &req.UpdatedAt)
	})
}

// GetByID fetches a request.
func (r *OverConsumptionRepository) GetByID(ctx context.Context, id string) (*OverConsumptionRequest, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var req OverConsumptionRequest
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `SELECT ` + requestColumns + ` FROM over_consumption_requests WHERE id = $1`
		return r.db.GetContext(ctx, &req, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("over-consumption request")
		}
		return nil, err
	}
	return &req, nil
}

// ListByWorkOrder returns requests for a work order, newest first.
func (r *OverConsumptionRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*OverConsumptionRequest, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var reqs []*OverConsumptionRequest
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `SELECT ` + requestColumns + ` FROM over_consumption_requests WHERE work_order_id = $1 ORDER BY created_at DESC`
		return r.db.SelectContext(ctx, &reqs, query, workOrderID)
	})
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Decide moves a pending request to its terminal status. The status guard in
// the WHERE clause makes concurrent decisions race-safe: only the first one
// lands, the loser affects zero rows and gets the precise error back.
func (r *OverConsumptionRepository) Decide(ctx context.Context, id, status, decidedBy string, decisionReason *string) (*OverConsumptionRequest, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var req OverConsumptionRequest
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE over_consumption_requests
			SET status = $2, decided_by = $3, decided_at = now(), decision_reason = $4, updated_at = now()
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + requestColumns
		err := r.db.GetContext(ctx, &req, query, id, status, decidedBy, decisionReason)
		if err == sql.ErrNoRows {
			return r.classifyDecideMiss(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *OverConsumptionRepository) classifyDecideMiss(ctx context.Context, id string) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM over_consumption_requests WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return errors.NotFound("over-consumption request")
	}
	if err != nil {
		return err
	}
	return errors.InvalidState("request is already " + status)
}
