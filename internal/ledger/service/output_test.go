package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/testutil"
)

func newMockOutputService(mockDB *testutil.MockDB) *service.OutputService {
	return service.NewOutputService(
		mockDB.DB,
		repository.NewLicensePlateRepository(mockDB.DB),
		repository.NewCatalogRepository(mockDB.DB),
		repository.NewSequenceRepository(mockDB.DB),
		nil,
		logger.New("test", "test"),
	)
}

func TestCreateOutputLPRejectsForeignLocation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	orgID := uuid.New().String()
	ctx := testutil.NewOrgContext(orgID)
	now := time.Now().UTC()

	mockDB.ExpectOrgScope(orgID)
	mockDB.ExpectQuery("FROM product_cache WHERE product_id = $1").
		WillReturnRows(testutil.MockRows(
			"product_id", "code", "name", "uom", "shelf_life_days", "batch_tracked", "updated_at",
		).AddRow("product-1", "FLOUR-01", "Flour", "KG", nil, false, now))
	mockDB.ExpectQuery("FROM location_cache WHERE location_id = $1").
		WillReturnRows(testutil.MockRows(
			"location_id", "warehouse_id", "code", "updated_at",
		).AddRow("location-1", "warehouse-other", "A-01-01", now))
	mockDB.ExpectRollback()

	svc := newMockOutputService(mockDB)
	_, err := svc.CreateOutputLP(ctx, service.OutputInput{
		ProductID:   "product-1",
		Quantity:    decimal.NewFromInt(10),
		WarehouseID: "warehouse-1",
		LocationID:  "location-1",
		WorkOrderID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCrossWarehouse)
	assert.Contains(t, err.Error(), "warehouse-other")
	mockDB.ExpectationsWereMet(t)
}

func TestCreateOutputLPRejectsUnknownLocation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	orgID := uuid.New().String()
	ctx := testutil.NewOrgContext(orgID)
	now := time.Now().UTC()

	mockDB.ExpectOrgScope(orgID)
	mockDB.ExpectQuery("FROM product_cache WHERE product_id = $1").
		WillReturnRows(testutil.MockRows(
			"product_id", "code", "name", "uom", "shelf_life_days", "batch_tracked", "updated_at",
		).AddRow("product-1", "FLOUR-01", "Flour", "KG", nil, false, now))
	mockDB.ExpectQuery("FROM location_cache WHERE location_id = $1").
		WillReturnRows(testutil.MockRows("location_id", "warehouse_id", "code", "updated_at"))
	mockDB.ExpectRollback()

	svc := newMockOutputService(mockDB)
	_, err := svc.CreateOutputLP(ctx, service.OutputInput{
		ProductID:   "product-1",
		Quantity:    decimal.NewFromInt(10),
		WarehouseID: "warehouse-1",
		LocationID:  uuid.New().String(),
		WorkOrderID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), "location does not exist")
	mockDB.ExpectationsWereMet(t)
}
