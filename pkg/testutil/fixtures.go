package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/actor"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Fixtures inserts test data through the same org RLS scopes production code
// uses, so a fixture written for one org is invisible to every other.
type Fixtures struct {
	DB *database.DB
}

// NewFixtures creates a fixture helper bound to a database
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{DB: db}
}

// InsertLicensePlate creates a license plate, filling defaults for fields the
// test does not care about. Returns the plate with its generated ID.
func (f *Fixtures) InsertLicensePlate(ctx context.Context, lp *repository.LicensePlate) (*repository.LicensePlate, error) {
	if lp.ID == "" {
		lp.ID = uuid.New().String()
	}
	if lp.LPNumber == "" {
		lp.LPNumber = "LP" + lp.ID[:8]
	}
	if lp.ProductID == "" {
		lp.ProductID = uuid.New().String()
	}
	if lp.UoM == "" {
		lp.UoM = "KG"
	}
	if lp.WarehouseID == "" {
		lp.WarehouseID = uuid.New().String()
	}
	if lp.LocationID == "" {
		lp.LocationID = uuid.New().String()
	}
	if lp.Status == "" {
		lp.Status = repository.StatusAvailable
	}
	if lp.QAStatus == "" {
		lp.QAStatus = repository.QAPassed
	}
	if lp.Source == "" {
		lp.Source = repository.SourceReceipt
	}
	if lp.CreatedBy == "" {
		lp.CreatedBy = actor.IDFromContext(ctx)
	}

	repo := repository.NewLicensePlateRepository(f.DB)
	if err := repo.Create(ctx, lp); err != nil {
		return nil, err
	}
	return lp, nil
}

// InsertProduct writes a product into the catalog cache
func (f *Fixtures) InsertProduct(ctx context.Context, product *repository.Product) (*repository.Product, error) {
	if product.ProductID == "" {
		product.ProductID = uuid.New().String()
	}
	if product.Code == "" {
		product.Code = "PRD-" + product.ProductID[:8]
	}
	if product.Name == "" {
		product.Name = "Test Product"
	}
	if product.UoM == "" {
		product.UoM = "KG"
	}

	repo := repository.NewCatalogRepository(f.DB)
	if err := repo.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// InsertWarehouseConfig writes a warehouse receiving configuration
func (f *Fixtures) InsertWarehouseConfig(ctx context.Context, cfg *repository.WarehouseConfig) (*repository.WarehouseConfig, error) {
	if cfg.WarehouseID == "" {
		cfg.WarehouseID = uuid.New().String()
	}

	repo := repository.NewCatalogRepository(f.DB)
	if err := repo.UpsertWarehouseConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InsertLocation writes a location into the catalog cache
func (f *Fixtures) InsertLocation(ctx context.Context, location *repository.Location) (*repository.Location, error) {
	if location.LocationID == "" {
		location.LocationID = uuid.New().String()
	}
	if location.WarehouseID == "" {
		location.WarehouseID = uuid.New().String()
	}
	if location.Code == "" {
		location.Code = "LOC-" + location.LocationID[:8]
	}

	repo := repository.NewCatalogRepository(f.DB)
	if err := repo.UpsertLocation(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

// PurchaseLineSpec describes one line of a fixture purchase order
type PurchaseLineSpec struct {
	ProductID string
	UoM       string
	Ordered   decimal.Decimal
	Received  decimal.Decimal
}

// InsertPurchaseOrder creates a purchase order with its lines. Line numbers
// are assigned in order, starting at 1.
func (f *Fixtures) InsertPurchaseOrder(ctx context.Context, warehouseID, status string, lines []PurchaseLineSpec) (*repository.PurchaseOrder, []*repository.PurchaseOrderLine, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	order := &repository.PurchaseOrder{
		ID:          uuid.New().String(),
		OrderNumber: "PO-" + uuid.New().String()[:8],
		WarehouseID: warehouseID,
		Status:      status,
	}
	var orderLines []*repository.PurchaseOrderLine

	err = f.DB.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		_, err := f.DB.ExecContext(ctx, `
			INSERT INTO purchase_orders (id, org_id, order_number, warehouse_id, status)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, orgID, order.OrderNumber, order.WarehouseID, order.Status)
		if err != nil {
			return err
		}

		for i, spec := range lines {
			uom := spec.UoM
			if uom == "" {
				uom = "KG"
			}
			line := &repository.PurchaseOrderLine{
				ID:               uuid.New().String(),
				OrderID:          order.ID,
				LineNo:           i + 1,
				ProductID:        spec.ProductID,
				UoM:              uom,
				OrderedQuantity:  spec.Ordered,
				ReceivedQuantity: spec.Received,
			}
			_, err := f.DB.ExecContext(ctx, `
				INSERT INTO purchase_order_lines (id, org_id, order_id, line_no, product_id, uom, ordered_quantity, received_quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, line.ID, orgID, line.OrderID, line.LineNo, line.ProductID, line.UoM, line.OrderedQuantity, line.ReceivedQuantity)
			if err != nil {
				return err
			}
			orderLines = append(orderLines, line)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, orderLines, nil
}

// TransferLineSpec describes one line of a fixture transfer order
type TransferLineSpec struct {
	ProductID string
	UoM       string
	Shipped   decimal.Decimal
	Received  decimal.Decimal
}

// InsertTransferOrder creates a transfer order with its lines
func (f *Fixtures) InsertTransferOrder(ctx context.Context, sourceWarehouseID, destinationWarehouseID, status string, lines []TransferLineSpec) (*repository.TransferOrder, []*repository.TransferOrderLine, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	order := &repository.TransferOrder{
		ID:                     uuid.New().String(),
		OrderNumber:            "TO-" + uuid.New().String()[:8],
		SourceWarehouseID:      sourceWarehouseID,
		DestinationWarehouseID: destinationWarehouseID,
		Status:                 status,
	}
	var orderLines []*repository.TransferOrderLine

	err = f.DB.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		_, err := f.DB.ExecContext(ctx, `
			INSERT INTO transfer_orders (id, org_id, order_number, source_warehouse_id, destination_warehouse_id, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, orgID, order.OrderNumber, order.SourceWarehouseID, order.DestinationWarehouseID, order.Status)
		if err != nil {
			return err
		}

		for i, spec := range lines {
			uom := spec.UoM
			if uom == "" {
				uom = "KG"
			}
			line := &repository.TransferOrderLine{
				ID:               uuid.New().String(),
				OrderID:          order.ID,
				LineNo:           i + 1,
				ProductID:        spec.ProductID,
				UoM:              uom,
				ShippedQuantity:  spec.Shipped,
				ReceivedQuantity: spec.Received,
			}
			_, err := f.DB.ExecContext(ctx, `
				INSERT INTO transfer_order_lines (id, org_id, order_id, line_no, product_id, uom, shipped_quantity, received_quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, line.ID, orgID, line.OrderID, line.LineNo, line.ProductID, line.UoM, line.ShippedQuantity, line.ReceivedQuantity)
			if err != nil {
				return err
			}
			orderLines = append(orderLines, line)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, orderLines, nil
}
