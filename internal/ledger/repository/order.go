package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Purchase order statuses
const (
	POStatusDraft     = "draft"
	POStatusApproved  = "approved"
	POStatusConfirmed = "confirmed"
	POStatusPartial   = "partial"
	POStatusClosed    = "closed"
	POStatusCancelled = "cancelled"
)

// Transfer order statuses
const (
	TOStatusDraft     = "draft"
	TOStatusShipped   = "shipped"
	TOStatusPartial   = "partial"
	TOStatusReceived  = "received"
	TOStatusCancelled = "cancelled"
)

// PurchaseOrder is the receivable view of a purchase order.
type PurchaseOrder struct {
	ID          string    `db:"id" json:"id"`
	OrderNumber string    `db:"order_number" json:"order_number"`
	SupplierID  *string   `db:"supplier_id" json:"supplier_id,omitempty"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PurchaseOrderLine tracks ordered versus received quantity.
type PurchaseOrderLine struct {
	ID               string          `db:"id" json:"id"`
	OrderID          string          `db:"order_id" json:"order_id"`
	LineNo           int             `db:"line_no" json:"line_no"`
	ProductID        string          `db:"product_id" json:"product_id"`
	UoM              string          `db:"uom" json:"uom"`
	OrderedQuantity  decimal.Decimal `db:"ordered_quantity" json:"ordered_quantity"`
	ReceivedQuantity decimal.Decimal `db:"received_quantity" json:"received_quantity"`
}

// TransferOrder moves stock between warehouses.
type TransferOrder struct {
	ID                     string    `db:"id" json:"id"`
	OrderNumber            string    `db:"order_number" json:"order_number"`
	SourceWarehouseID      string    `db:"source_warehouse_id" json:"source_warehouse_id"`
	DestinationWarehouseID string    `db:"destination_warehouse_id" json:"destination_warehouse_id"`
	Status                 string    `db:"status" json:"status"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// TransferOrderLine tracks shipped versus received quantity.
type TransferOrderLine struct {
	ID               string          `db:"id" json:"id"`
	OrderID          string          `db:"order_id" json:"order_id"`
	LineNo           int             `db:"line_no" json:"line_no"`
	ProductID        string          `db:"product_id" json:"product_id"`
	UoM              string          `db:"uom" json:"uom"`
	ShippedQuantity  decimal.Decimal `db:"shipped_quantity" json:"shipped_quantity"`
	ReceivedQuantity decimal.Decimal `db:"received_quantity" json:"received_quantity"`
}

// OrderRepository reads and updates receivable orders.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetPurchaseOrderForUpdate fetches a purchase order and its lines, locking
// the order row. Two receipts against the same order serialize here, so
// received quantities and status recomputation never interleave.
func (r *OrderRepository) GetPurchaseOrderForUpdate(ctx context.Context, id string) (*PurchaseOrder, []*PurchaseOrderLine, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	var order PurchaseOrder
	var lines []*PurchaseOrderLine
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, order_number, supplier_id, warehouse_id, status, created_at, updated_at
			FROM purchase_orders WHERE id = $1 FOR UPDATE
		`
		if err := r.db.GetContext(ctx, &order, query, id); err != nil {
			return err
		}

		linesQuery := `
			SELECT id, order_id, line_no, product_id, uom, ordered_quantity, received_quantity
			FROM purchase_order_lines WHERE order_id = $1 ORDER BY line_no
		`
		return r.db.SelectContext(ctx, &lines, linesQuery, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("purchase order")
		}
		return nil, nil, err
	}
	return &order, lines, nil
}

// GetTransferOrderForUpdate fetches a transfer order and its lines, locking
// the order row.
func (r *OrderRepository) GetTransferOrderForUpdate(ctx context.Context, id string) (*TransferOrder, []*TransferOrderLine, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	var order TransferOrder
	var lines []*TransferOrderLine
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, order_number, source_warehouse_id, destination_warehouse_id, status, created_at, updated_at
			FROM transfer_orders WHERE id = $1 FOR UPDATE
		`
		if err := r.db.GetContext(ctx, &order, query, id); err != nil {
			return err
		}

		linesQuery := `
			SELECT id, order_id, line_no, product_id, uom, shipped_quantity, received_quantity
			FROM transfer_order_lines WHERE order_id = $1 ORDER BY line_no
		`
		return r.db.SelectContext(ctx, &lines, linesQuery, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("transfer order")
		}
		return nil, nil, err
	}
	return &order, lines, nil
}

// AddPurchaseLineReceived accumulates received quantity on a purchase order line.
func (r *OrderRepository) AddPurchaseLineReceived(ctx context.Context, lineID string, quantity decimal.Decimal) error {
	return r.addLineReceived(ctx, "purchase_order_lines", lineID, quantity)
}

// AddTransferLineReceived accumulates received quantity on a transfer order line.
func (r *OrderRepository) AddTransferLineReceived(ctx context.Context, lineID string, quantity decimal.Decimal) error {
	return r.addLineReceived(ctx, "transfer_order_lines", lineID, quantity)
}

func (r *OrderRepository) addLineReceived(ctx context.Context, table, lineID string, quantity decimal.Decimal) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `UPDATE ` + table + ` SET received_quantity = received_quantity + $2 WHERE id = $1`
		result, err := r.db.ExecContext(ctx, query, lineID, quantity)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("order line")
		}
		return nil
	})
}

// UpdatePurchaseOrderStatus sets a purchase order status.
func (r *OrderRepository) UpdatePurchaseOrderStatus(ctx context.Context, id, status string) error {
	return r.updateOrderStatus(ctx, "purchase_orders", id, status)
}

// UpdateTransferOrderStatus sets a transfer order status.
func (r *OrderRepository) UpdateTransferOrderStatus(ctx context.Context, id, status string) error {
	return r.updateOrderStatus(ctx, "transfer_orders", id, status)
}

func (r *OrderRepository) updateOrderStatus(ctx context.Context, table, id, status string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `UPDATE ` + table + ` SET status = $2, updated_at = now() WHERE id = $1`
		result, err := r.db.ExecContext(ctx, query, id, status)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("order")
		}
		return nil
	})
}
