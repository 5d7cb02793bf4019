package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// License plate statuses
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusBlocked   = "blocked"
	StatusConsumed  = "consumed"
)

// QA statuses
const (
	QAPending    = "pending"
	QAPassed     = "passed"
	QAFailed     = "failed"
	QAQuarantine = "quarantine"
)

// License plate sources
const (
	SourceReceipt    = "receipt"
	SourceProduction = "production"
	SourceMerge      = "merge"
	SourceTransfer   = "transfer"
)

// LicensePlate is a uniquely numbered unit of inventory custody.
type LicensePlate struct {
	ID                  string           `db:"id" json:"id"`
	LPNumber            string           `db:"lp_number" json:"lp_number"`
	ProductID           string           `db:"product_id" json:"product_id"`
	Quantity            decimal.Decimal  `db:"quantity" json:"quantity"`
	UoM                 string           `db:"uom" json:"uom"`
	BatchNumber         *string          `db:"batch_number" json:"batch_number,omitempty"`
	SupplierBatchNumber *string          `db:"supplier_batch_number" json:"supplier_batch_number,omitempty"`
	ExpiryDate          *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	ManufactureDate     *time.Time       `db:"manufacture_date" json:"manufacture_date,omitempty"`
	WarehouseID         string           `db:"warehouse_id" json:"warehouse_id"`
	LocationID          string           `db:"location_id" json:"location_id"`
	Status              string           `db:"status" json:"status"`
	QAStatus            string           `db:"qa_status" json:"qa_status"`
	Source              string           `db:"source" json:"source"`
	SourceOrderNumber   *string          `db:"source_order_number" json:"source_order_number,omitempty"`
	GoodsReceiptID      *string          `db:"goods_receipt_id" json:"goods_receipt_id,omitempty"`
	WorkOrderID         *string          `db:"work_order_id" json:"work_order_id,omitempty"`
	ParentLPID          *string          `db:"parent_lp_id" json:"parent_lp_id,omitempty"`
	CatchWeight         *decimal.Decimal `db:"catch_weight" json:"catch_weight,omitempty"`
	BlockedReason       *string          `db:"blocked_reason" json:"blocked_reason,omitempty"`
	CreatedBy           string           `db:"created_by" json:"created_by"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the plate's expiry date lies strictly before the
// given day. A plate expiring today is still usable.
func (lp *LicensePlate) IsExpired(today time.Time) bool {
	if lp.ExpiryDate == nil {
		return false
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return lp.ExpiryDate.Before(day)
}

const lpColumns = `
	id, lp_number, product_id, quantity, uom, batch_number, supplier_batch_number,
	expiry_date, manufacture_date, warehouse_id, location_id, status, qa_status,
	source, source_order_number, goods_receipt_id, work_order_id, parent_lp_id,
	catch_weight, blocked_reason, created_by, created_at, updated_at`

// LicensePlateRepository handles license plate persistence
type LicensePlateRepository struct {
	db *database.DB
}

// NewLicensePlateRepository creates a new license plate repository
func NewLicensePlateRepository(db *database.DB) *LicensePlateRepository {
	return &LicensePlateRepository{db: db}
}

// Create inserts a new license plate.
// ORG-ISOLATED: the row carries org_id and RLS enforces it on write.
func (r *LicensePlateRepository) Create(ctx context.Context, lp *LicensePlate) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if lp.ID == "" {
		lp.ID = uuid.New().String()
	}
	if lp.Status == "" {
		lp.Status = StatusAvailable
	}
	if lp.QAStatus == "" {
		lp.QAStatus = QAPassed
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO license_plates (
				id, org_id, lp_number, product_id, quantity, uom, batch_number,
				supplier_batch_number, expiry_date, manufacture_date, warehouse_id,
				location_id, status, qa_status, source, source_order_number,
				goods_receipt_id, work_order_id, parent_lp_id, catch_weight, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			lp.ID, orgID, lp.LPNumber, lp.ProductID, lp.Quantity, lp.UoM, lp.BatchNumber,
			lp.SupplierBatchNumber, lp.ExpiryDate, lp.ManufactureDate, lp.WarehouseID,
			lp.LocationID, lp.Status, lp.QAStatus, lp.Source, lp.SourceOrderNumber,
			lp.GoodsReceiptID, lp.WorkOrderID, lp.ParentLPID, lp.CatchWeight, lp.CreatedBy,
		).Scan(&lp.CreatedAt, &lp.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets a license plate by ID
func (r *LicensePlateRepository) GetByID(ctx context.Context, id string) (*LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lp LicensePlate
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `SELECT ` + lpColumns + ` FROM license_plates WHERE id = $1`
		return r.db.GetContext(ctx, &lp, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("license plate")
		}
		return nil, err
	}
	return &lp, nil
}

// GetByIDs gets license plates by IDs. The result may be smaller than the
// requested set; callers decide whether that is an error.
func (r *LicensePlateRepository) GetByIDs(ctx context.Context, ids []string) ([]*LicensePlate, error) {
	return r.getByIDs(ctx, ids, false)
}

// GetByIDsForUpdate gets license plates by IDs with FOR UPDATE row locks.
// Used by merge so a concurrent consumption cannot slip between validation
// and source retirement.
func (r *LicensePlateRepository) GetByIDsForUpdate(ctx context.Context, ids []string) ([]*LicensePlate, error) {
	return r.getByIDs(ctx, ids, true)
}

func (r *LicensePlateRepository) getByIDs(ctx context.Context, ids []string, forUpdate bool) ([]*LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lps []*LicensePlate
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `SELECT ` + lpColumns + ` FROM license_plates WHERE id = ANY($1) ORDER BY created_at`
		if forUpdate {
			query += ` FOR UPDATE`
		}
		return r.db.SelectContext(ctx, &lps, query, pq.Array(ids))
	})
	if err != nil {
		return nil, err
	}
	return lps, nil
}

// UpdateStatus sets status and blocked reason. The guard excludes consumed
// plates: they are immutable except through reversal.
func (r *LicensePlateRepository) UpdateStatus(ctx context.Context, id, status string, blockedReason *string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET status = $2, blocked_reason = $3, updated_at = now()
			WHERE id = $1 AND status <> 'consumed'
		`
		result, err := r.db.ExecContext(ctx, query, id, status, blockedReason)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return r.classifyMiss(ctx, id, "status update")
		}
		return nil
	})
}

// UpdateQAStatus sets the QA status
func (r *LicensePlateRepository) UpdateQAStatus(ctx context.Context, id, qaStatus string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET qa_status = $2, updated_at = now()
			WHERE id = $1 AND status <> 'consumed'
		`
		result, err := r.db.ExecContext(ctx, query, id, qaStatus)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return r.classifyMiss(ctx, id, "QA status update")
		}
		return nil
	})
}

// UpdateCorrection applies an administrative quantity/location correction.
func (r *LicensePlateRepository) UpdateCorrection(ctx context.Context, id string, quantity decimal.Decimal, locationID string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET quantity = $2, location_id = $3, updated_at = now()
			WHERE id = $1 AND status <> 'consumed'
		`
		result, err := r.db.ExecContext(ctx, query, id, quantity, locationID)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return r.classifyMiss(ctx, id, "correction")
		}
		return nil
	})
}

// ConsumeQuantity subtracts quantity from an available, QA-passed, unexpired
// plate. The WHERE clause is the concurrency guard: two consumers racing on
// the same plate cannot both satisfy the quantity precondition, whichever
// commits second affects zero rows. A plate consumed to zero flips to
// consumed and records the work order; partial consumption leaves the plate
// available and unattached.
//
// Returns the updated plate, or nil when no row matched (caller classifies
// the reason by re-reading within the same RLS scope).
func (r *LicensePlateRepository) ConsumeQuantity(ctx context.Context, id string, quantity decimal.Decimal, workOrderID *string) (*LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lp LicensePlate
	found := false
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET quantity = quantity - $2,
			    status = CASE WHEN quantity - $2 = 0 THEN 'consumed' ELSE status END,
			    work_order_id = CASE WHEN quantity - $2 = 0 THEN $3 ELSE work_order_id END,
			    updated_at = now()
			WHERE id = $1
			  AND status = 'available'
			  AND qa_status = 'passed'
			  AND quantity >= $2
			  AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
			RETURNING ` + lpColumns
		err := r.db.GetContext(ctx, &lp, query, id, quantity, workOrderID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &lp, nil
}

// RestoreQuantity adds quantity back to a plate and restores available
// status, compensating a mistaken consumption. QA status is left untouched.
func (r *LicensePlateRepository) RestoreQuantity(ctx context.Context, id string, quantity decimal.Decimal) (*LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lp LicensePlate
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET quantity = quantity + $2,
			    status = 'available',
			    work_order_id = NULL,
			    updated_at = now()
			WHERE id = $1 AND status IN ('available', 'consumed')
			RETURNING ` + lpColumns
		return r.db.GetContext(ctx, &lp, query, id, quantity)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, r.classifyRestoreMiss(ctx, id)
		}
		return nil, err
	}
	return &lp, nil
}

// RetireForMerge marks every source plate consumed, conditional on each still
// being available. Returns the number of rows updated; the caller must abort
// the merge when it is short of len(ids).
func (r *LicensePlateRepository) RetireForMerge(ctx context.Context, ids []string) (int64, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			UPDATE license_plates
			SET status = 'consumed', updated_at = now()
			WHERE id = ANY($1) AND status = 'available'
		`
		result, err := r.db.ExecContext(ctx, query, pq.Array(ids))
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	return affected, err
}

// classifyMiss turns a zero-row update into the precise error: the plate
// either does not exist (or RLS hides it, same thing) or is consumed.
func (r *LicensePlateRepository) classifyMiss(ctx context.Context, id, operation string) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM license_plates WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return errors.NotFound("license plate")
	}
	if err != nil {
		return err
	}
	if status == StatusConsumed {
		return errors.InvalidTransition("license plate is consumed and cannot be modified")
	}
	return errors.Conflict(operation + " did not apply")
}

func (r *LicensePlateRepository) classifyRestoreMiss(ctx context.Context, id string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}
	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		var status string
		err := r.db.GetContext(ctx, &status, `SELECT status FROM license_plates WHERE id = $1`, id)
		if err == sql.ErrNoRows {
			return errors.NotFound("license plate")
		}
		if err != nil {
			return err
		}
		return errors.InvalidTransition("consumption can only be reversed on an available or consumed license plate")
	})
}
