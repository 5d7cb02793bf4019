package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/actor"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// ReceiptService executes goods receipt against purchase and transfer
// orders: status and warehouse gates, quantity accounting with tolerance or
// variance rules, then the atomic mint-and-update step.
type ReceiptService struct {
	db          *database.DB
	lpRepo      *repository.LicensePlateRepository
	orderRepo   *repository.OrderRepository
	receiptRepo *repository.GoodsReceiptRepository
	catalogRepo *repository.CatalogRepository
	seqRepo     *repository.SequenceRepository
	output      *OutputService
	publisher   *events.Publisher
	logger      *logger.Logger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(db *database.DB, lpRepo *repository.LicensePlateRepository, orderRepo *repository.OrderRepository, receiptRepo *repository.GoodsReceiptRepository, catalogRepo *repository.CatalogRepository, seqRepo *repository.SequenceRepository, output *OutputService, publisher *events.Publisher, log *logger.Logger) *ReceiptService {
	return &ReceiptService{
		db:          db,
		lpRepo:      lpRepo,
		orderRepo:   orderRepo,
		receiptRepo: receiptRepo,
		catalogRepo: catalogRepo,
		seqRepo:     seqRepo,
		output:      output,
		publisher:   publisher,
		logger:      log,
	}
}

// ReceiptInput is the goods receipt request.
type ReceiptInput struct {
	OrderID     string
	WarehouseID string
	LocationID  string
	Items       []ReceiptItemInput
}

// ReceiptItemInput is one received line.
type ReceiptItemInput struct {
	LineID              string
	Quantity            decimal.Decimal
	BatchNumber         *string
	SupplierBatchNumber *string
	ExpiryDate          *time.Time
	VarianceReason      *string
}

// ReceiptResult reports the committed receipt.
type ReceiptResult struct {
	ReceiptID     string   `json:"receipt_id"`
	ReceiptNumber string   `json:"receipt_number"`
	OrderStatus   string   `json:"order_status"`
	LPIDs         []string `json:"lp_ids"`
}

// receiptLine normalizes a purchase or transfer order line for the shared
// receipt procedure. Reference is ordered quantity for purchase, shipped for
// transfer.
type receiptLine struct {
	ID        string
	LineNo    int
	ProductID string
	UoM       string
	Reference decimal.Decimal
	Received  decimal.Decimal
}

// orderKind is the capability set that differs between purchase and
// transfer receipt; the surrounding procedure is shared.
type orderKind interface {
	orderType() string
	lpSource() string
	checkStatus(status string) error
	checkWarehouse(warehouseID string) error
	// checkQuantity validates one line's attempted quantity against its
	// reference and returns the recorded variance, if any. idx is the
	// 1-based position in the request.
	checkQuantity(line receiptLine, attempting decimal.Decimal, varianceReason *string, idx int) (*decimal.Decimal, error)
	completedStatus() string
	addReceived(ctx context.Context, repo *repository.OrderRepository, lineID string, quantity decimal.Decimal) error
	updateStatus(ctx context.Context, repo *repository.OrderRepository, orderID, status string) error
}

// ReceivePurchase receives goods against a purchase order.
func (s *ReceiptService) ReceivePurchase(ctx context.Context, input ReceiptInput) (*ReceiptResult, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateReceiptInput(input); err != nil {
		return nil, err
	}

	var result *ReceiptResult
	var receipt *repository.GoodsReceipt
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		order, poLines, err := s.orderRepo.GetPurchaseOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}

		cfg, err := s.warehouseConfig(ctx, input.WarehouseID)
		if err != nil {
			return err
		}

		lines := make([]receiptLine, len(poLines))
		for i, l := range poLines {
			lines[i] = receiptLine{
				ID:        l.ID,
				LineNo:    l.LineNo,
				ProductID: l.ProductID,
				UoM:       l.UoM,
				Reference: l.OrderedQuantity,
				Received:  l.ReceivedQuantity,
			}
		}

		kind := &purchaseKind{cfg: cfg}
		if err := kind.checkStatus(order.Status); err != nil {
			return err
		}

		receipt, result, err = s.execute(ctx, kind, order.ID, order.OrderNumber, order.Status, lines, cfg, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ReceiptCompleted(ctx, receipt, result.OrderStatus, result.LPIDs)
	s.logger.Info().
		Str("receipt_number", result.ReceiptNumber).
		Str("order_id", input.OrderID).
		Str("order_status", result.OrderStatus).
		Msg("purchase receipt completed")
	return result, nil
}

// ReceiveTransfer receives goods against a transfer order at its
// destination warehouse.
func (s *ReceiptService) ReceiveTransfer(ctx context.Context, input ReceiptInput) (*ReceiptResult, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateReceiptInput(input); err != nil {
		return nil, err
	}

	var result *ReceiptResult
	var receipt *repository.GoodsReceipt
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		order, toLines, err := s.orderRepo.GetTransferOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}

		cfg, err := s.warehouseConfig(ctx, input.WarehouseID)
		if err != nil {
			return err
		}

		lines := make([]receiptLine, len(toLines))
		for i, l := range toLines {
			lines[i] = receiptLine{
				ID:        l.ID,
				LineNo:    l.LineNo,
				ProductID: l.ProductID,
				UoM:       l.UoM,
				Reference: l.ShippedQuantity,
				Received:  l.ReceivedQuantity,
			}
		}

		kind := &transferKind{destinationWarehouseID: order.DestinationWarehouseID}
		if err := kind.checkStatus(order.Status); err != nil {
			return err
		}
		if err := kind.checkWarehouse(input.WarehouseID); err != nil {
			return err
		}

		receipt, result, err = s.execute(ctx, kind, order.ID, order.OrderNumber, order.Status, lines, cfg, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ReceiptCompleted(ctx, receipt, result.OrderStatus, result.LPIDs)
	s.logger.Info().
		Str("receipt_number", result.ReceiptNumber).
		Str("order_id", input.OrderID).
		Str("order_status", result.OrderStatus).
		Msg("transfer receipt completed")
	return result, nil
}

// execute runs the shared atomic receipt procedure inside the caller's RLS
// scope: validate everything, then mint plates, write the receipt, update
// lines and recompute order status.
func (s *ReceiptService) execute(ctx context.Context, kind orderKind, orderID, orderNumber, orderStatus string, lines []receiptLine, cfg *repository.WarehouseConfig, input ReceiptInput) (*repository.GoodsReceipt, *ReceiptResult, error) {
	byLineID := make(map[string]*receiptLine, len(lines))
	for i := range lines {
		byLineID[lines[i].ID] = &lines[i]
	}

	// Validation pass. Nothing is written until every item passes.
	type plannedItem struct {
		line     *receiptLine
		input    ReceiptItemInput
		variance *decimal.Decimal
	}
	planned := make([]plannedItem, 0, len(input.Items))
	for i, item := range input.Items {
		idx := i + 1
		line, ok := byLineID[item.LineID]
		if !ok {
			return nil, nil, errors.ValidationMessage(fmt.Sprintf("line %d: order line not found", idx))
		}
		if !item.Quantity.IsPositive() {
			return nil, nil, errors.ValidationMessage(fmt.Sprintf("line %d: quantity must be positive", idx))
		}
		if cfg != nil && cfg.BatchRequiredOnReceipt && (item.BatchNumber == nil || *item.BatchNumber == "") {
			return nil, nil, errors.BatchRequired(fmt.Sprintf("line %d: batch number is required", idx))
		}
		if cfg != nil && cfg.ExpiryRequiredOnReceipt && item.ExpiryDate == nil {
			return nil, nil, errors.ExpiryRequired(fmt.Sprintf("line %d: expiry date is required", idx))
		}

		variance, err := kind.checkQuantity(*line, item.Quantity, item.VarianceReason, idx)
		if err != nil {
			return nil, nil, err
		}
		planned = append(planned, plannedItem{line: line, input: item, variance: variance})

		// Accumulate so a second item on the same line is validated against
		// the running total.
		line.Received = line.Received.Add(item.Quantity)
	}

	receiptNumber, err := s.seqRepo.NextReceiptNumber(ctx)
	if err != nil {
		return nil, nil, err
	}

	receipt := &repository.GoodsReceipt{
		ID:            uuid.New().String(),
		ReceiptNumber: receiptNumber,
		OrderType:     kind.orderType(),
		OrderID:       orderID,
		WarehouseID:   input.WarehouseID,
		ReceivedBy:    actor.IDFromContext(ctx),
		ReceivedAt:    time.Now().UTC(),
	}

	items := make([]*repository.GoodsReceiptItem, 0, len(planned))
	lpIDs := make([]string, 0, len(planned))
	for _, p := range planned {
		lp, err := s.output.Mint(ctx, MintInput{
			ProductID:           p.line.ProductID,
			Quantity:            p.input.Quantity,
			UoM:                 p.line.UoM,
			BatchNumber:         p.input.BatchNumber,
			SupplierBatchNumber: p.input.SupplierBatchNumber,
			ExpiryDate:          p.input.ExpiryDate,
			WarehouseID:         input.WarehouseID,
			LocationID:          input.LocationID,
			Source:              kind.lpSource(),
			SourceOrderNumber:   &orderNumber,
			GoodsReceiptID:      &receipt.ID,
		})
		if err != nil {
			return nil, nil, err
		}
		lpIDs = append(lpIDs, lp.ID)
		items = append(items, &repository.GoodsReceiptItem{
			OrderLineID:      p.line.ID,
			LPID:             lp.ID,
			ProductID:        p.line.ProductID,
			Quantity:         p.input.Quantity,
			UoM:              p.line.UoM,
			VarianceQuantity: p.variance,
			VarianceReason:   p.input.VarianceReason,
		})

		if err := kind.addReceived(ctx, s.orderRepo, p.line.ID, p.input.Quantity); err != nil {
			return nil, nil, err
		}
	}

	if err := s.receiptRepo.Create(ctx, receipt, items); err != nil {
		return nil, nil, err
	}

	newStatus := recomputeOrderStatus(kind, lines, orderStatus)
	if newStatus != orderStatus {
		if err := kind.updateStatus(ctx, s.orderRepo, orderID, newStatus); err != nil {
			return nil, nil, err
		}
	}

	return receipt, &ReceiptResult{
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		OrderStatus:   newStatus,
		LPIDs:         lpIDs,
	}, nil
}

// recomputeOrderStatus derives the order status from cumulative received
// quantities: any line short of its reference means partial, every line at
// or above reference closes the order, nothing received leaves it alone.
func recomputeOrderStatus(kind orderKind, lines []receiptLine, current string) string {
	anyReceived := false
	allComplete := true
	for _, line := range lines {
		if line.Received.IsPositive() {
			anyReceived = true
		}
		if line.Received.LessThan(line.Reference) {
			allComplete = false
		}
	}
	if !anyReceived {
		return current
	}
	if allComplete {
		return kind.completedStatus()
	}
	return partialStatus
}

const partialStatus = "partial"

func validateReceiptInput(input ReceiptInput) error {
	if input.OrderID == "" {
		return errors.ValidationMessage("order_id is required")
	}
	if input.WarehouseID == "" {
		return errors.ValidationMessage("warehouse_id is required")
	}
	if input.LocationID == "" {
		return errors.ValidationMessage("location_id is required")
	}
	if len(input.Items) == 0 {
		return errors.ValidationMessage("at least one item is required")
	}
	return nil
}

func (s *ReceiptService) warehouseConfig(ctx context.Context, warehouseID string) (*repository.WarehouseConfig, error) {
	cfg, err := s.catalogRepo.GetWarehouseConfig(ctx, warehouseID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// purchaseKind receives against ordered quantity with an over-receipt
// tolerance.
type purchaseKind struct {
	cfg *repository.WarehouseConfig
}

func (k *purchaseKind) orderType() string { return repository.OrderTypePurchase }
func (k *purchaseKind) lpSource() string  { return repository.SourceReceipt }

func (k *purchaseKind) checkStatus(status string) error {
	switch status {
	case repository.POStatusApproved, repository.POStatusConfirmed, repository.POStatusPartial:
		return nil
	case repository.POStatusClosed:
		return errors.InvalidState("purchase order is already fully received")
	case repository.POStatusCancelled:
		return errors.InvalidState("purchase order is cancelled")
	default:
		return errors.InvalidState("purchase order in status " + status + " cannot be received")
	}
}

func (k *purchaseKind) checkWarehouse(string) error { return nil }

func (k *purchaseKind) checkQuantity(line receiptLine, attempting decimal.Decimal, _ *string, idx int) (*decimal.Decimal, error) {
	totalAfter := line.Received.Add(attempting)
	if totalAfter.LessThanOrEqual(line.Reference) {
		return nil, nil
	}

	if k.cfg == nil || !k.cfg.OverReceiptEnabled {
		return nil, errors.ToleranceExceeded(fmt.Sprintf(
			"line %d: over-receipt is not allowed, maximum %s %s", idx, line.Reference.String(), line.UoM))
	}

	hundred := decimal.NewFromInt(100)
	maxAllowed := line.Reference.Mul(hundred.Add(k.cfg.OverReceiptTolerancePct)).Div(hundred)
	if totalAfter.GreaterThan(maxAllowed) {
		return nil, errors.ToleranceExceeded(fmt.Sprintf(
			"line %d: total received %s exceeds maximum allowed %s %s",
			idx, totalAfter.String(), maxAllowed.String(), line.UoM))
	}

	overage := totalAfter.Sub(line.Reference)
	return &overage, nil
}

func (k *purchaseKind) completedStatus() string { return repository.POStatusClosed }

func (k *purchaseKind) addReceived(ctx context.Context, repo *repository.OrderRepository, lineID string, quantity decimal.Decimal) error {
	return repo.AddPurchaseLineReceived(ctx, lineID, quantity)
}

func (k *purchaseKind) updateStatus(ctx context.Context, repo *repository.OrderRepository, orderID, status string) error {
	return repo.UpdatePurchaseOrderStatus(ctx, orderID, status)
}

// transferKind receives against shipped quantity. Shortage and overage are
// both first-class outcomes, recorded as signed variance with a mandatory
// reason.
type transferKind struct {
	destinationWarehouseID string
}

func (k *transferKind) orderType() string { return repository.OrderTypeTransfer }
func (k *transferKind) lpSource() string  { return repository.SourceTransfer }

func (k *transferKind) checkStatus(status string) error {
	switch status {
	case repository.TOStatusShipped, repository.TOStatusPartial:
		return nil
	case repository.TOStatusReceived:
		return errors.InvalidState("transfer order is already fully received")
	case repository.TOStatusCancelled:
		return errors.InvalidState("transfer order is cancelled")
	default:
		return errors.InvalidState("transfer order in status " + status + " cannot be received")
	}
}

func (k *transferKind) checkWarehouse(warehouseID string) error {
	if warehouseID != k.destinationWarehouseID {
		return errors.CrossWarehouse("transfer must be received at its destination warehouse")
	}
	return nil
}

func (k *transferKind) checkQuantity(line receiptLine, attempting decimal.Decimal, varianceReason *string, idx int) (*decimal.Decimal, error) {
	totalAfter := line.Received.Add(attempting)
	if totalAfter.GreaterThan(line.Reference) {
		return nil, errors.ValidationMessage(fmt.Sprintf(
			"line %d: total received %s exceeds shipped quantity %s %s",
			idx, totalAfter.String(), line.Reference.String(), line.UoM))
	}

	remaining := line.Reference.Sub(line.Received)
	if attempting.Equal(remaining) {
		return nil, nil
	}

	if varianceReason == nil || *varianceReason == "" {
		return nil, errors.ValidationMessage(fmt.Sprintf(
			"line %d: variance reason is required when received quantity differs from shipped", idx))
	}
	variance := attempting.Sub(remaining)
	return &variance, nil
}

func (k *transferKind) completedStatus() string { return repository.TOStatusReceived }

func (k *transferKind) addReceived(ctx context.Context, repo *repository.OrderRepository, lineID string, quantity decimal.Decimal) error {
	return repo.AddTransferLineReceived(ctx, lineID, quantity)
}

func (k *transferKind) updateStatus(ctx context.Context, repo *repository.OrderRepository, orderID, status string) error {
	return repo.UpdateTransferOrderStatus(ctx, orderID, status)
}
