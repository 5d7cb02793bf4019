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

// Order types on a goods receipt
const (
	OrderTypePurchase = "purchase"
	OrderTypeTransfer = "transfer"
)

// GoodsReceipt records one receiving event against an order.
type GoodsReceipt struct {
	ID            string    `db:"id" json:"id"`
	ReceiptNumber string    `db:"receipt_number" json:"receipt_number"`
	OrderType     string    `db:"order_type" json:"order_type"`
	OrderID       string    `db:"order_id" json:"order_id"`
	WarehouseID   string    `db:"warehouse_id" json:"warehouse_id"`
	ReceivedBy    string    `db:"received_by" json:"received_by"`
	ReceivedAt    time.Time `db:"received_at" json:"received_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GoodsReceiptItem links a received quantity to the order line and the
// license plate it minted. VarianceQuantity is signed, negative for shortage.
type GoodsReceiptItem struct {
	ID               string           `db:"id" json:"id"`
	ReceiptID        string           `db:"receipt_id" json:"receipt_id"`
	OrderLineID      string           `db:"order_line_id" json:"order_line_id"`
	LPID             string           `db:"lp_id" json:"lp_id"`
	ProductID        string           `db:"product_id" json:"product_id"`
	Quantity         decimal.Decimal  `db:"quantity" json:"quantity"`
	UoM              string           `db:"uom" json:"uom"`
	VarianceQuantity *decimal.Decimal `db:"variance_quantity" json:"variance_quantity,omitempty"`
	VarianceReason   *string          `db:"variance_reason" json:"variance_reason,omitempty"`
}

// GoodsReceiptRepository persists goods receipts and their items.
type GoodsReceiptRepository struct {
	db *database.DB
}

// NewGoodsReceiptRepository creates a new goods receipt repository
func NewGoodsReceiptRepository(db *database.DB) *GoodsReceiptRepository {
	return &GoodsReceiptRepository{db: db}
}

// Create inserts a receipt header with its items.
func (r *GoodsReceiptRepository) Create(ctx context.Context, receipt *GoodsReceipt, items []*GoodsReceiptItem) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO goods_receipts (id, org_id, receipt_number, order_type, order_id, warehouse_id, received_by, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			receipt.ID, orgID, receipt.ReceiptNumber, receipt.OrderType,
			receipt.OrderID, receipt.WarehouseID, receipt.ReceivedBy, receipt.ReceivedAt,
		).Scan(&receipt.CreatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		itemQuery := `
			INSERT INTO goods_receipt_items (id, org_id, receipt_id, order_line_id, lp_id, product_id, quantity, uom, variance_quantity, variance_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		for _, item := range items {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			item.ReceiptID = receipt.ID
			if _, err := r.db.ExecContext(ctx, itemQuery,
				item.ID, orgID, item.ReceiptID, item.OrderLineID, item.LPID,
				item.ProductID, item.Quantity, item.UoM, item.VarianceQuantity, item.VarianceReason,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID fetches a receipt and its items.
func (r *GoodsReceiptRepository) GetByID(ctx context.Context, id string) (*GoodsReceipt, []*GoodsReceiptItem, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	var receipt GoodsReceipt
	var items []*GoodsReceiptItem
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT id, receipt_number, order_type, order_id, warehouse_id, received_by, received_at, created_at
			FROM goods_receipts WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &receipt, query, id); err != nil {
			return err
		}

		itemsQuery := `
			SELECT id, receipt_id, order_line_id, lp_id, product_id, quantity, uom, variance_quantity, variance_reason
			FROM goods_receipt_items WHERE receipt_id = $1 ORDER BY id
		`
		return r.db.SelectContext(ctx, &items, itemsQuery, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("goods receipt")
		}
		return nil, nil, err
	}
	return &receipt, items, nil
}
