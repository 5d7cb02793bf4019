//go:build integration

package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/testutil"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type LedgerFlowSuite struct {
	testutil.IntegrationSuite

	fixtures *testutil.Fixtures

	lpRepo        *repository.LicensePlateRepository
	genealogyRepo *repository.GenealogyRepository
	receiptRepo   *repository.GoodsReceiptRepository

	ledger          *service.LedgerService
	allocation      *service.AllocationService
	consumption     *service.ConsumptionService
	output          *service.OutputService
	merge           *service.MergeService
	receipt         *service.ReceiptService
	overconsumption *service.OverConsumptionService
}

func TestLedgerFlowSuite(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Run(t, new(LedgerFlowSuite))
}

func (s *LedgerFlowSuite) SetupTest() {
	s.IntegrationSuite.SetupTest()

	log := logger.New("test", "test")
	s.fixtures = testutil.NewFixtures(s.DB)

	s.lpRepo = repository.NewLicensePlateRepository(s.DB)
	s.genealogyRepo = repository.NewGenealogyRepository(s.DB)
	s.receiptRepo = repository.NewGoodsReceiptRepository(s.DB)
	orderRepo := repository.NewOrderRepository(s.DB)
	catalogRepo := repository.NewCatalogRepository(s.DB)
	seqRepo := repository.NewSequenceRepository(s.DB)
	ocRepo := repository.NewOverConsumptionRepository(s.DB)

	s.ledger = service.NewLedgerService(s.DB, s.lpRepo, catalogRepo, nil, log)
	s.allocation = service.NewAllocationService(s.lpRepo)
	s.consumption = service.NewConsumptionService(s.DB, s.lpRepo, nil, log)
	s.output = service.NewOutputService(s.DB, s.lpRepo, catalogRepo, seqRepo, nil, log)
	s.merge = service.NewMergeService(s.DB, s.lpRepo, catalogRepo, seqRepo, s.genealogyRepo, nil, log)
	s.receipt = service.NewReceiptService(s.DB, s.lpRepo, orderRepo, s.receiptRepo, catalogRepo, seqRepo, s.output, nil, log)
	s.overconsumption = service.NewOverConsumptionService(ocRepo, nil, log)
}

func (s *LedgerFlowSuite) insertAvailableLP(quantity string, mutate func(*repository.LicensePlate)) *repository.LicensePlate {
	lp := &repository.LicensePlate{
		ProductID:   uuid.New().String(),
		Quantity:    d(quantity),
		WarehouseID: uuid.New().String(),
		LocationID:  uuid.New().String(),
	}
	if mutate != nil {
		mutate(lp)
	}
	inserted, err := s.fixtures.InsertLicensePlate(s.Ctx, lp)
	s.Require().NoError(err)
	return inserted
}

// Consumption

func (s *LedgerFlowSuite) TestConsumePartialThenFull() {
	lp := s.insertAvailableLP("500", nil)
	workOrderID := uuid.New().String()

	// Partial consumption keeps the plate available and unattached.
	after, err := s.consumption.Consume(s.Ctx, lp.ID, d("30"), workOrderID)
	s.Require().NoError(err)
	s.Equal(repository.StatusAvailable, after.Status)
	s.True(after.Quantity.Equal(d("470")))
	s.Nil(after.WorkOrderID)

	// Consuming the remainder retires the plate and records the work order.
	after, err = s.consumption.Consume(s.Ctx, lp.ID, d("470"), workOrderID)
	s.Require().NoError(err)
	s.Equal(repository.StatusConsumed, after.Status)
	s.True(after.Quantity.IsZero())
	s.Require().NotNil(after.WorkOrderID)
	s.Equal(workOrderID, *after.WorkOrderID)

	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.IsZero())

	// A consumed plate cannot be consumed again.
	_, err = s.consumption.Consume(s.Ctx, lp.ID, d("1"), workOrderID)
	s.ErrorIs(err, errors.ErrNotAvailable)
}

func (s *LedgerFlowSuite) TestConsumeInsufficientQuantity() {
	lp := s.insertAvailableLP("100", nil)

	_, err := s.consumption.Consume(s.Ctx, lp.ID, d("150"), "")
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrInsufficientQuantity)
	s.Contains(err.Error(), lp.LPNumber)

	// The failed attempt changed nothing.
	current, err := s.lpRepo.GetByID(s.Ctx, lp.ID)
	s.Require().NoError(err)
	s.True(current.Quantity.Equal(d("100")))
}

func (s *LedgerFlowSuite) TestConsumeGates() {
	blocked := s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.Status = repository.StatusBlocked
	})
	_, err := s.consumption.Consume(s.Ctx, blocked.ID, d("1"), "")
	s.ErrorIs(err, errors.ErrNotAvailable)

	pending := s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.QAStatus = repository.QAPending
	})
	_, err = s.consumption.Consume(s.Ctx, pending.ID, d("1"), "")
	s.ErrorIs(err, errors.ErrQANotPassed)

	expired := s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.ExpiryDate = testutil.DaysFromNowPtr(-1)
	})
	_, err = s.consumption.Consume(s.Ctx, expired.ID, d("1"), "")
	s.ErrorIs(err, errors.ErrExpired)

	// Expiring today is still consumable.
	expiringToday := s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.ExpiryDate = testutil.DaysFromNowPtr(0)
	})
	_, err = s.consumption.Consume(s.Ctx, expiringToday.ID, d("1"), "")
	s.NoError(err)
}

func (s *LedgerFlowSuite) TestReverseConsumptionRestoresQuantity() {
	lp := s.insertAvailableLP("200", nil)
	workOrderID := uuid.New().String()

	_, err := s.consumption.Consume(s.Ctx, lp.ID, d("200"), workOrderID)
	s.Require().NoError(err)

	restored, err := s.consumption.ReverseConsumption(s.Ctx, lp.ID, d("200"), workOrderID)
	s.Require().NoError(err)
	s.Equal(repository.StatusAvailable, restored.Status)
	s.True(restored.Quantity.Equal(d("200")))
	s.Nil(restored.WorkOrderID)

	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.Equal(d("200")))
}

// Ledger transitions

func (s *LedgerFlowSuite) TestBlockUnblock() {
	lp := s.insertAvailableLP("50", nil)

	blocked, err := s.ledger.Block(s.Ctx, lp.ID, "quality hold")
	s.Require().NoError(err)
	s.Equal(repository.StatusBlocked, blocked.Status)
	s.Require().NotNil(blocked.BlockedReason)
	s.Equal("quality hold", *blocked.BlockedReason)

	// Blocked stock is out of allocation.
	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.IsZero())

	unblocked, err := s.ledger.Unblock(s.Ctx, lp.ID)
	s.Require().NoError(err)
	s.Equal(repository.StatusAvailable, unblocked.Status)
	s.Nil(unblocked.BlockedReason)

	total, err = s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.Equal(d("50")))

	// Unblocking an available plate is an invalid transition.
	_, err = s.ledger.Unblock(s.Ctx, lp.ID)
	s.ErrorIs(err, errors.ErrInvalidTransition)
}

func (s *LedgerFlowSuite) TestConsumedPlateIsImmutable() {
	lp := s.insertAvailableLP("10", nil)
	_, err := s.consumption.Consume(s.Ctx, lp.ID, d("10"), "")
	s.Require().NoError(err)

	_, err = s.ledger.Block(s.Ctx, lp.ID, "too late")
	s.ErrorIs(err, errors.ErrInvalidTransition)

	_, err = s.ledger.UpdateQAStatus(s.Ctx, lp.ID, repository.QAFailed)
	s.ErrorIs(err, errors.ErrInvalidTransition)

	qty := d("5")
	_, err = s.ledger.Correct(s.Ctx, lp.ID, service.CorrectionInput{Quantity: &qty})
	s.ErrorIs(err, errors.ErrInvalidTransition)
}

func (s *LedgerFlowSuite) TestQAGateExcludesFromAllocation() {
	lp := s.insertAvailableLP("80", nil)

	failed, err := s.ledger.UpdateQAStatus(s.Ctx, lp.ID, repository.QAFailed)
	s.Require().NoError(err)
	s.Equal(repository.QAFailed, failed.QAStatus)

	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.IsZero())

	_, err = s.ledger.UpdateQAStatus(s.Ctx, lp.ID, repository.QAPassed)
	s.Require().NoError(err)

	total, err = s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.Equal(d("80")))
}

func (s *LedgerFlowSuite) TestCorrection() {
	lp := s.insertAvailableLP("100", nil)
	newLocation, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: lp.WarehouseID,
	})
	s.Require().NoError(err)

	qty := d("95.5")
	corrected, err := s.ledger.Correct(s.Ctx, lp.ID, service.CorrectionInput{
		Quantity:   &qty,
		LocationID: &newLocation.LocationID,
	})
	s.Require().NoError(err)
	s.True(corrected.Quantity.Equal(d("95.5")))
	s.Equal(newLocation.LocationID, corrected.LocationID)

	_, err = s.ledger.Correct(s.Ctx, lp.ID, service.CorrectionInput{})
	s.ErrorIs(err, errors.ErrValidation)
}

func (s *LedgerFlowSuite) TestCorrectionLocationMustShareWarehouse() {
	lp := s.insertAvailableLP("100", nil)

	// Location in another warehouse.
	foreign, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: uuid.New().String(),
	})
	s.Require().NoError(err)

	_, err = s.ledger.Correct(s.Ctx, lp.ID, service.CorrectionInput{LocationID: &foreign.LocationID})
	s.ErrorIs(err, errors.ErrCrossWarehouse)

	// Unknown location.
	unknown := uuid.New().String()
	_, err = s.ledger.Correct(s.Ctx, lp.ID, service.CorrectionInput{LocationID: &unknown})
	s.ErrorIs(err, errors.ErrValidation)

	// The rejected corrections changed nothing.
	current, err := s.lpRepo.GetByID(s.Ctx, lp.ID)
	s.Require().NoError(err)
	s.Equal(lp.LocationID, current.LocationID)
}

// Allocation ordering

func (s *LedgerFlowSuite) TestFEFOOrdersByExpiryWithDatelessLast() {
	productID := uuid.New().String()
	warehouseID := uuid.New().String()

	withProduct := func(expiry *time.Time) func(*repository.LicensePlate) {
		return func(lp *repository.LicensePlate) {
			lp.ProductID = productID
			lp.WarehouseID = warehouseID
			lp.ExpiryDate = expiry
		}
	}

	later := s.insertAvailableLP("10", withProduct(testutil.DaysFromNowPtr(30)))
	sooner := s.insertAvailableLP("10", withProduct(testutil.DaysFromNowPtr(5)))
	dateless := s.insertAvailableLP("10", withProduct(nil))

	lps, err := s.allocation.ListAvailable(s.Ctx, repository.AvailableParams{ProductID: productID})
	s.Require().NoError(err)
	s.Require().Len(lps, 3)
	s.Equal(sooner.ID, lps[0].ID)
	s.Equal(later.ID, lps[1].ID)
	s.Equal(dateless.ID, lps[2].ID)

	// FIFO falls back to receipt order.
	lps, err = s.allocation.ListAvailable(s.Ctx, repository.AvailableParams{
		ProductID: productID,
		Strategy:  repository.StrategyFIFO,
	})
	s.Require().NoError(err)
	s.Require().Len(lps, 3)
	s.Equal(later.ID, lps[0].ID)
}

func (s *LedgerFlowSuite) TestListFilters() {
	productID := uuid.New().String()
	s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.ProductID = productID
		lp.LPNumber = "LP90000001"
	})
	s.insertAvailableLP("20", func(lp *repository.LicensePlate) {
		lp.ProductID = productID
		lp.LPNumber = "LP90000002"
		lp.Status = repository.StatusBlocked
	})

	lps, total, err := s.allocation.List(s.Ctx, repository.ListParams{
		Statuses: []string{repository.StatusBlocked},
	})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(lps, 1)
	s.Equal("LP90000002", lps[0].LPNumber)

	lps, total, err = s.allocation.List(s.Ctx, repository.ListParams{Search: "LP9000"})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(lps, 2)
}

// Merge

func (s *LedgerFlowSuite) mergeSet(quantities ...string) ([]string, string) {
	productID := uuid.New().String()
	warehouseID := uuid.New().String()
	locationID := uuid.New().String()
	batch := "BATCH-MRG"
	expiry := testutil.DaysFromNowPtr(60)

	ids := make([]string, 0, len(quantities))
	for _, q := range quantities {
		lp := s.insertAvailableLP(q, func(lp *repository.LicensePlate) {
			lp.ProductID = productID
			lp.WarehouseID = warehouseID
			lp.LocationID = locationID
			lp.BatchNumber = &batch
			lp.ExpiryDate = expiry
		})
		ids = append(ids, lp.ID)
	}
	return ids, productID
}

func (s *LedgerFlowSuite) TestMergeThreeWay() {
	ids, productID := s.mergeSet("50", "30", "20")

	summary, err := s.merge.ValidateMerge(s.Ctx, ids)
	s.Require().NoError(err)
	s.True(summary.TotalQuantity.Equal(d("100")))
	s.Equal(3, summary.MemberCount)

	merged, err := s.merge.Merge(s.Ctx, service.MergeInput{LPIDs: ids})
	s.Require().NoError(err)
	s.True(merged.Quantity.Equal(d("100")))
	s.Equal(repository.StatusAvailable, merged.Status)
	s.Equal(repository.SourceMerge, merged.Source)

	// Sources are retired, quantity is conserved.
	for _, id := range ids {
		src, err := s.lpRepo.GetByID(s.Ctx, id)
		s.Require().NoError(err)
		s.Equal(repository.StatusConsumed, src.Status)
	}
	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: productID})
	s.Require().NoError(err)
	s.True(total.Equal(d("100")))

	// Genealogy has one edge per source.
	parents, err := s.genealogyRepo.Parents(s.Ctx, merged.ID)
	s.Require().NoError(err)
	s.Len(parents, 3)
}

func (s *LedgerFlowSuite) TestMergeRejectsMismatchedBatch() {
	ids, _ := s.mergeSet("10", "10")
	otherBatch := "BATCH-OTHER"
	odd := s.insertAvailableLP("10", func(lp *repository.LicensePlate) {
		lp.BatchNumber = &otherBatch
	})

	_, err := s.merge.ValidateMerge(s.Ctx, append(ids, odd.ID))
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrValidation)
}

func (s *LedgerFlowSuite) TestMergeRejectsBlockedSource() {
	ids, _ := s.mergeSet("10", "10")

	_, err := s.ledger.Block(s.Ctx, ids[0], "hold")
	s.Require().NoError(err)

	_, err = s.merge.Merge(s.Ctx, service.MergeInput{LPIDs: ids})
	s.ErrorIs(err, errors.ErrNotAvailable)

	// The surviving source is untouched.
	other, err := s.lpRepo.GetByID(s.Ctx, ids[1])
	s.Require().NoError(err)
	s.Equal(repository.StatusAvailable, other.Status)
}

func (s *LedgerFlowSuite) TestMergeTargetLocationMustShareWarehouse() {
	ids, _ := s.mergeSet("10", "10")
	first, err := s.lpRepo.GetByID(s.Ctx, ids[0])
	s.Require().NoError(err)

	// Location in another warehouse.
	foreign, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: uuid.New().String(),
	})
	s.Require().NoError(err)

	_, err = s.merge.Merge(s.Ctx, service.MergeInput{LPIDs: ids, TargetLocationID: foreign.LocationID})
	s.ErrorIs(err, errors.ErrCrossWarehouse)

	// Unknown location.
	_, err = s.merge.Merge(s.Ctx, service.MergeInput{LPIDs: ids, TargetLocationID: uuid.New().String()})
	s.ErrorIs(err, errors.ErrValidation)

	// Location in the same warehouse works.
	local, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: first.WarehouseID,
	})
	s.Require().NoError(err)

	merged, err := s.merge.Merge(s.Ctx, service.MergeInput{LPIDs: ids, TargetLocationID: local.LocationID})
	s.Require().NoError(err)
	s.Equal(local.LocationID, merged.LocationID)
}

// Production output

func (s *LedgerFlowSuite) TestCreateOutputLPDerivesExpiryAndBatchRules() {
	shelfLife := 10
	product, err := s.fixtures.InsertProduct(s.Ctx, &repository.Product{
		ShelfLifeDays: &shelfLife,
		BatchTracked:  true,
	})
	s.Require().NoError(err)

	warehouseID := uuid.New().String()
	location, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: warehouseID,
	})
	s.Require().NoError(err)

	input := service.OutputInput{
		ProductID:   product.ProductID,
		Quantity:    d("25"),
		WarehouseID: warehouseID,
		LocationID:  location.LocationID,
		WorkOrderID: uuid.New().String(),
	}

	// Batch-tracked products demand a batch number.
	_, err = s.output.CreateOutputLP(s.Ctx, input)
	s.ErrorIs(err, errors.ErrBatchRequired)

	batch := "BATCH-OUT"
	input.BatchNumber = &batch
	lp, err := s.output.CreateOutputLP(s.Ctx, input)
	s.Require().NoError(err)
	s.Equal(repository.SourceProduction, lp.Source)
	s.Equal(product.UoM, lp.UoM)
	s.Require().NotNil(lp.WorkOrderID)

	// Expiry derives from shelf life when not supplied.
	s.Require().NotNil(lp.ExpiryDate)
	expected := time.Now().UTC().AddDate(0, 0, shelfLife)
	s.WithinDuration(expected, *lp.ExpiryDate, 24*time.Hour)

	// Sequence numbering starts at 1 per organization.
	s.Equal("LP00000001", lp.LPNumber)
}

func (s *LedgerFlowSuite) TestOutputLocationMustShareWarehouse() {
	product, err := s.fixtures.InsertProduct(s.Ctx, &repository.Product{})
	s.Require().NoError(err)

	foreign, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: uuid.New().String(),
	})
	s.Require().NoError(err)

	input := service.OutputInput{
		ProductID:   product.ProductID,
		Quantity:    d("5"),
		WarehouseID: uuid.New().String(),
		LocationID:  foreign.LocationID,
		WorkOrderID: uuid.New().String(),
	}
	_, err = s.output.CreateOutputLP(s.Ctx, input)
	s.ErrorIs(err, errors.ErrCrossWarehouse)

	// Unknown location.
	input.LocationID = uuid.New().String()
	_, err = s.output.CreateOutputLP(s.Ctx, input)
	s.ErrorIs(err, errors.ErrValidation)

	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: product.ProductID})
	s.Require().NoError(err)
	s.True(total.IsZero())
}

// Goods receipt

func (s *LedgerFlowSuite) receiptContext(overReceipt bool, pct string) (warehouseID, locationID, productID string) {
	cfg, err := s.fixtures.InsertWarehouseConfig(s.Ctx, &repository.WarehouseConfig{
		OverReceiptEnabled:      overReceipt,
		OverReceiptTolerancePct: d(pct),
	})
	s.Require().NoError(err)

	location, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: cfg.WarehouseID,
	})
	s.Require().NoError(err)

	product, err := s.fixtures.InsertProduct(s.Ctx, &repository.Product{})
	s.Require().NoError(err)

	return cfg.WarehouseID, location.LocationID, product.ProductID
}

func (s *LedgerFlowSuite) TestPurchaseReceiptWithinTolerance() {
	warehouseID, locationID, productID := s.receiptContext(true, "10")

	order, lines, err := s.fixtures.InsertPurchaseOrder(s.Ctx, warehouseID, repository.POStatusApproved,
		[]testutil.PurchaseLineSpec{{ProductID: productID, Ordered: d("100")}})
	s.Require().NoError(err)

	result, err := s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items: []service.ReceiptItemInput{
			{LineID: lines[0].ID, Quantity: d("110")},
		},
	})
	s.Require().NoError(err)
	s.Equal(repository.POStatusClosed, result.OrderStatus)
	s.Require().Len(result.LPIDs, 1)

	lp, err := s.lpRepo.GetByID(s.Ctx, result.LPIDs[0])
	s.Require().NoError(err)
	s.True(lp.Quantity.Equal(d("110")))
	s.Equal(repository.SourceReceipt, lp.Source)
	s.Require().NotNil(lp.SourceOrderNumber)
	s.Equal(order.OrderNumber, *lp.SourceOrderNumber)

	// The overage is recorded as positive variance on the receipt item.
	_, items, err := s.receiptRepo.GetByID(s.Ctx, result.ReceiptID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Require().NotNil(items[0].VarianceQuantity)
	s.True(items[0].VarianceQuantity.Equal(d("10")))

	// A closed order refuses further receipt.
	_, err = s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("1")}},
	})
	s.ErrorIs(err, errors.ErrInvalidState)
}

func (s *LedgerFlowSuite) TestPurchaseReceiptBeyondTolerance() {
	warehouseID, locationID, productID := s.receiptContext(true, "10")

	order, lines, err := s.fixtures.InsertPurchaseOrder(s.Ctx, warehouseID, repository.POStatusApproved,
		[]testutil.PurchaseLineSpec{{ProductID: productID, Ordered: d("100")}})
	s.Require().NoError(err)

	_, err = s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("111")}},
	})
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrToleranceExceeded)

	// The rejected receipt left no trace.
	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: productID})
	s.Require().NoError(err)
	s.True(total.IsZero())
}

func (s *LedgerFlowSuite) TestPurchaseReceiptPartialThenComplete() {
	warehouseID, locationID, productID := s.receiptContext(false, "0")

	order, lines, err := s.fixtures.InsertPurchaseOrder(s.Ctx, warehouseID, repository.POStatusConfirmed,
		[]testutil.PurchaseLineSpec{{ProductID: productID, Ordered: d("100")}})
	s.Require().NoError(err)

	result, err := s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("60")}},
	})
	s.Require().NoError(err)
	s.Equal(repository.POStatusPartial, result.OrderStatus)

	result, err = s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("40")}},
	})
	s.Require().NoError(err)
	s.Equal(repository.POStatusClosed, result.OrderStatus)

	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{
		ProductID:   productID,
		WarehouseID: warehouseID,
	})
	s.Require().NoError(err)
	s.True(total.Equal(d("100")))
}

func (s *LedgerFlowSuite) TestTransferReceiptShortageNeedsReason() {
	warehouseID, locationID, productID := s.receiptContext(false, "0")

	order, lines, err := s.fixtures.InsertTransferOrder(s.Ctx, uuid.New().String(), warehouseID,
		repository.TOStatusShipped,
		[]testutil.TransferLineSpec{{ProductID: productID, Shipped: d("200")}})
	s.Require().NoError(err)

	// Shortage without a reason is rejected.
	_, err = s.receipt.ReceiveTransfer(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("180")}},
	})
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrValidation)
	s.Contains(err.Error(), "variance reason")

	// With a reason it lands, recording the shortage as negative variance.
	reason := "damaged in transit"
	result, err := s.receipt.ReceiveTransfer(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items: []service.ReceiptItemInput{
			{LineID: lines[0].ID, Quantity: d("180"), VarianceReason: &reason},
		},
	})
	s.Require().NoError(err)
	s.Equal(repository.TOStatusPartial, result.OrderStatus)

	_, items, err := s.receiptRepo.GetByID(s.Ctx, result.ReceiptID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Require().NotNil(items[0].VarianceQuantity)
	s.True(items[0].VarianceQuantity.Equal(d("-20")))

	lp, err := s.lpRepo.GetByID(s.Ctx, result.LPIDs[0])
	s.Require().NoError(err)
	s.Equal(repository.SourceTransfer, lp.Source)
}

func (s *LedgerFlowSuite) TestTransferReceiptWrongWarehouse() {
	warehouseID, locationID, productID := s.receiptContext(false, "0")

	order, lines, err := s.fixtures.InsertTransferOrder(s.Ctx, uuid.New().String(), warehouseID,
		repository.TOStatusShipped,
		[]testutil.TransferLineSpec{{ProductID: productID, Shipped: d("50")}})
	s.Require().NoError(err)

	_, err = s.receipt.ReceiveTransfer(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: uuid.New().String(),
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("50")}},
	})
	s.ErrorIs(err, errors.ErrCrossWarehouse)
}

func (s *LedgerFlowSuite) TestReceiptLocationMustShareWarehouse() {
	warehouseID, _, productID := s.receiptContext(false, "0")

	foreign, err := s.fixtures.InsertLocation(s.Ctx, &repository.Location{
		WarehouseID: uuid.New().String(),
	})
	s.Require().NoError(err)

	order, lines, err := s.fixtures.InsertPurchaseOrder(s.Ctx, warehouseID, repository.POStatusApproved,
		[]testutil.PurchaseLineSpec{{ProductID: productID, Ordered: d("10")}})
	s.Require().NoError(err)

	_, err = s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  foreign.LocationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("10")}},
	})
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrCrossWarehouse)

	// The rejected receipt left no trace.
	total, err := s.allocation.TotalAvailable(s.Ctx, repository.AvailableParams{ProductID: productID})
	s.Require().NoError(err)
	s.True(total.IsZero())
}

func (s *LedgerFlowSuite) TestReceiptNumbersArePerOrgSequences() {
	warehouseID, locationID, productID := s.receiptContext(false, "0")

	order, lines, err := s.fixtures.InsertPurchaseOrder(s.Ctx, warehouseID, repository.POStatusApproved,
		[]testutil.PurchaseLineSpec{{ProductID: productID, Ordered: d("10")}})
	s.Require().NoError(err)

	result, err := s.receipt.ReceivePurchase(s.Ctx, service.ReceiptInput{
		OrderID:     order.ID,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Items:       []service.ReceiptItemInput{{LineID: lines[0].ID, Quantity: d("10")}},
	})
	s.Require().NoError(err)
	s.Equal(repository.FormatReceiptNumber(time.Now().UTC().Year(), 1), result.ReceiptNumber)
}

// Over-consumption approval

func (s *LedgerFlowSuite) TestOverConsumptionStateMachine() {
	workOrderID := uuid.New().String()

	req, err := s.overconsumption.Submit(s.Ctx, service.SubmitInput{
		WorkOrderID: workOrderID,
		ProductID:   uuid.New().String(),
		Quantity:    d("5"),
		UoM:         "KG",
		Reason:      "recipe adjustment",
	})
	s.Require().NoError(err)
	s.Equal(repository.RequestPending, req.Status)

	approved, err := s.overconsumption.Approve(s.Ctx, req.ID, "within waste allowance")
	s.Require().NoError(err)
	s.Equal(repository.RequestApproved, approved.Status)
	s.NotNil(approved.DecidedBy)
	s.NotNil(approved.DecidedAt)

	// Terminal states reject further decisions.
	_, err = s.overconsumption.Approve(s.Ctx, req.ID, "")
	s.ErrorIs(err, errors.ErrInvalidState)
	s.Contains(err.Error(), "already approved")

	_, err = s.overconsumption.Cancel(s.Ctx, req.ID)
	s.ErrorIs(err, errors.ErrInvalidState)

	// A second request can still be filed and rejected.
	second, err := s.overconsumption.Submit(s.Ctx, service.SubmitInput{
		WorkOrderID: workOrderID,
		ProductID:   uuid.New().String(),
		Quantity:    d("3"),
		Reason:      "spillage",
	})
	s.Require().NoError(err)

	rejected, err := s.overconsumption.Reject(s.Ctx, second.ID, "no allowance left")
	s.Require().NoError(err)
	s.Equal(repository.RequestRejected, rejected.Status)

	// Both appear on the work order, newest first.
	reqs, err := s.overconsumption.ListByWorkOrder(s.Ctx, workOrderID)
	s.Require().NoError(err)
	s.Len(reqs, 2)
}

// Multi-tenancy

func (s *LedgerFlowSuite) TestOrgIsolation() {
	lp := s.insertAvailableLP("10", nil)

	otherOrg := testutil.NewOrgContext(uuid.New().String())
	_, err := s.lpRepo.GetByID(otherOrg, lp.ID)
	s.ErrorIs(err, errors.ErrNotFound)

	total, err := s.allocation.TotalAvailable(otherOrg, repository.AvailableParams{ProductID: lp.ProductID})
	s.Require().NoError(err)
	s.True(total.IsZero())
}
