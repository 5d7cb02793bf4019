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

// Product is the locally cached product master data, kept in sync from
// catalog events.
type Product struct {
	ProductID     string    `db:"product_id" json:"product_id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	UoM           string    `db:"uom" json:"uom"`
	ShelfLifeDays *int      `db:"shelf_life_days" json:"shelf_life_days,omitempty"`
	BatchTracked  bool      `db:"batch_tracked" json:"batch_tracked"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// WarehouseConfig is the locally cached receiving configuration of a warehouse.
type WarehouseConfig struct {
	WarehouseID             string          `db:"warehouse_id" json:"warehouse_id"`
	OverReceiptEnabled      bool            `db:"over_receipt_enabled" json:"over_receipt_enabled"`
	OverReceiptTolerancePct decimal.Decimal `db:"over_receipt_tolerance_pct" json:"over_receipt_tolerance_pct"`
	BatchRequiredOnReceipt  bool            `db:"batch_required_on_receipt" json:"batch_required_on_receipt"`
	ExpiryRequiredOnReceipt bool            `db:"expiry_required_on_receipt" json:"expiry_required_on_receipt"`
	QARequiredOnReceipt     bool            `db:"qa_required_on_receipt" json:"qa_required_on_receipt"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// Location is the locally cached location-to-warehouse mapping.
type Location struct {
	LocationID  string    `db:"location_id" json:"location_id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Code        string    `db:"code" json:"code"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CatalogRepository maintains the local caches of catalog master data.
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetProduct fetches a cached product.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var product Product
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT product_id, code, name, uom, shelf_life_days, batch_tracked, updated_at
			FROM product_cache WHERE product_id = $1
		`
		return r.db.GetContext(ctx, &product, query, productID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// UpsertProduct writes a product into the cache.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, product *Product) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO product_cache (org_id, product_id, code, name, uom, shelf_life_days, batch_tracked, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (org_id, product_id)
			DO UPDATE SET code = $3, name = $4, uom = $5, shelf_life_days = $6, batch_tracked = $7, updated_at = now()
		`
		_, err := r.db.ExecContext(ctx, query,
			orgID, product.ProductID, product.Code, product.Name,
			product.UoM, product.ShelfLifeDays, product.BatchTracked,
		)
		return err
	})
}

// DeleteProduct removes a product from the cache.
func (r *CatalogRepository) DeleteProduct(ctx context.Context, productID string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM product_cache WHERE product_id = $1`, productID)
		return err
	})
}

// GetLocation fetches a cached location.
func (r *CatalogRepository) GetLocation(ctx context.Context, locationID string) (*Location, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var location Location
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT location_id, warehouse_id, code, updated_at
			FROM location_cache WHERE location_id = $1
		`
		return r.db.GetContext(ctx, &location, query, locationID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("location")
		}
		return nil, err
	}
	return &location, nil
}

// UpsertLocation writes a location into the cache.
func (r *CatalogRepository) UpsertLocation(ctx context.Context, location *Location) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO location_cache (org_id, location_id, warehouse_id, code, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (org_id, location_id)
			DO UPDATE SET warehouse_id = $3, code = $4, updated_at = now()
		`
		_, err := r.db.ExecContext(ctx, query, orgID, location.LocationID, location.WarehouseID, location.Code)
		return err
	})
}

// DeleteLocation removes a location from the cache.
func (r *CatalogRepository) DeleteLocation(ctx context.Context, locationID string) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM location_cache WHERE location_id = $1`, locationID)
		return err
	})
}

// GetWarehouseConfig fetches the cached receiving configuration.
func (r *CatalogRepository) GetWarehouseConfig(ctx context.Context, warehouseID string) (*WarehouseConfig, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var cfg WarehouseConfig
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			SELECT warehouse_id, over_receipt_enabled, over_receipt_tolerance_pct,
			       batch_required_on_receipt, expiry_required_on_receipt, qa_required_on_receipt, updated_at
			FROM warehouse_config_cache WHERE warehouse_id = $1
		`
		return r.db.GetContext(ctx, &cfg, query, warehouseID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("warehouse configuration")
		}
		return nil, err
	}
	return &cfg, nil
}

// UpsertWarehouseConfig writes a warehouse configuration into the cache.
func (r *CatalogRepository) UpsertWarehouseConfig(ctx context.Context, cfg *WarehouseConfig) error {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO warehouse_config_cache (org_id, warehouse_id, over_receipt_enabled, over_receipt_tolerance_pct,
				batch_required_on_receipt, expiry_required_on_receipt, qa_required_on_receipt, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (org_id, warehouse_id)
			DO UPDATE SET over_receipt_enabled = $3, over_receipt_tolerance_pct = $4,
				batch_required_on_receipt = $5, expiry_required_on_receipt = $6,
				qa_required_on_receipt = $7, updated_at = now()
		`
		_, err := r.db.ExecContext(ctx, query,
			orgID, cfg.WarehouseID, cfg.OverReceiptEnabled, cfg.OverReceiptTolerancePct,
			cfg.BatchRequiredOnReceipt, cfg.ExpiryRequiredOnReceipt, cfg.QARequiredOnReceipt,
		)
		return err
	})
}
