package consumers

import (
	"context"
	"fmt"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/messaging"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// CatalogConsumer keeps the local product, warehouse and location caches in
// sync with the catalog service. The ledger reads policy (shelf life, batch
// tracking, receipt tolerances) from these caches instead of calling out on
// every operation.
type CatalogConsumer struct {
	catalogRepo *repository.CatalogRepository
	logger      *logger.Logger
}

// NewCatalogConsumer creates a new catalog consumer
func NewCatalogConsumer(catalogRepo *repository.CatalogRepository, log *logger.Logger) *CatalogConsumer {
	return &CatalogConsumer{
		catalogRepo: catalogRepo,
		logger:      log,
	}
}

// Register subscribes to catalog events and wires the handlers.
func (c *CatalogConsumer) Register(consumer *messaging.Consumer) error {
	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.#"); err != nil {
		return fmt.Errorf("failed to subscribe to catalog events: %w", err)
	}

	consumer.RegisterHandler(messaging.EventProductUpdated, c.handleProductUpdated)
	consumer.RegisterHandler(messaging.EventWarehouseConfigUpdated, c.handleWarehouseConfigUpdated)
	consumer.RegisterHandler(messaging.EventLocationUpdated, c.handleLocationUpdated)
	return nil
}

func (c *CatalogConsumer) handleProductUpdated(ctx context.Context, event *messaging.Event) error {
	var payload messaging.ProductUpdatedEvent
	if err := event.UnmarshalData(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal product event: %w", err)
	}

	ctx = org.WithOrgID(ctx, payload.OrgID)

	if payload.Deleted {
		if err := c.catalogRepo.DeleteProduct(ctx, payload.ProductID); err != nil {
			return err
		}
		c.logger.Info().Str("product_id", payload.ProductID).Msg("product removed from cache")
		return nil
	}

	err := c.catalogRepo.UpsertProduct(ctx, &repository.Product{
		ProductID:     payload.ProductID,
		Code:          payload.Code,
		Name:          payload.Name,
		UoM:           payload.UoM,
		ShelfLifeDays: payload.ShelfLifeDays,
		BatchTracked:  payload.BatchTracked,
	})
	if err != nil {
		return err
	}

	c.logger.Debug().Str("product_id", payload.ProductID).Str("code", payload.Code).Msg("product cache updated")
	return nil
}

func (c *CatalogConsumer) handleWarehouseConfigUpdated(ctx context.Context, event *messaging.Event) error {
	var payload messaging.WarehouseConfigUpdatedEvent
	if err := event.UnmarshalData(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal warehouse config event: %w", err)
	}

	ctx = org.WithOrgID(ctx, payload.OrgID)

	err := c.catalogRepo.UpsertWarehouseConfig(ctx, &repository.WarehouseConfig{
		WarehouseID:             payload.WarehouseID,
		OverReceiptEnabled:      payload.OverReceiptEnabled,
		OverReceiptTolerancePct: payload.OverReceiptTolerancePct,
		BatchRequiredOnReceipt:  payload.BatchRequiredOnReceipt,
		ExpiryRequiredOnReceipt: payload.ExpiryRequiredOnReceipt,
		QARequiredOnReceipt:     payload.QARequiredOnReceipt,
	})
	if err != nil {
		return err
	}

	c.logger.Debug().Str("warehouse_id", payload.WarehouseID).Msg("warehouse config cache updated")
	return nil
}

func (c *CatalogConsumer) handleLocationUpdated(ctx context.Context, event *messaging.Event) error {
	var payload messaging.LocationUpdatedEvent
	if err := event.UnmarshalData(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal location event: %w", err)
	}

	ctx = org.WithOrgID(ctx, payload.OrgID)

	if payload.Deleted {
		return c.catalogRepo.DeleteLocation(ctx, payload.LocationID)
	}

	return c.catalogRepo.UpsertLocation(ctx, &repository.Location{
		LocationID:  payload.LocationID,
		WarehouseID: payload.WarehouseID,
		Code:        payload.Code,
	})
}
