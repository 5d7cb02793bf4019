package events

import (
	"context"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/messaging"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Publisher emits ledger domain events. A nil publisher is a no-op so the
// service can run without a broker in tests and local setups.
//
// Events are published after the owning transaction commits. A failed publish
// is logged and swallowed: the ledger is the source of truth, consumers
// resync from it.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a ledger event publisher
func NewPublisher(publisher *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		logger:    log,
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func orgID(ctx context.Context) string {
	id, _ := org.OrgID(ctx)
	return id
}

// LPCreated publishes a license plate creation event.
func (p *Publisher) LPCreated(ctx context.Context, lp *repository.LicensePlate) {
	p.publish(ctx, messaging.EventLPCreated, messaging.LPCreatedEvent{
		LPID:        lp.ID,
		LPNumber:    lp.LPNumber,
		OrgID:       orgID(ctx),
		ProductID:   lp.ProductID,
		Quantity:    lp.Quantity,
		UoM:         lp.UoM,
		WarehouseID: lp.WarehouseID,
		LocationID:  lp.LocationID,
		Source:      lp.Source,
	})
}

// LPBlocked publishes a block event.
func (p *Publisher) LPBlocked(ctx context.Context, lp *repository.LicensePlate, reason string) {
	p.publish(ctx, messaging.EventLPBlocked, messaging.LPStatusEvent{
		LPID:     lp.ID,
		LPNumber: lp.LPNumber,
		OrgID:    orgID(ctx),
		Status:   repository.StatusBlocked,
		QAStatus: lp.QAStatus,
		Reason:   reason,
	})
}

// LPUnblocked publishes an unblock event.
func (p *Publisher) LPUnblocked(ctx context.Context, lp *repository.LicensePlate) {
	p.publish(ctx, messaging.EventLPUnblocked, messaging.LPStatusEvent{
		LPID:     lp.ID,
		LPNumber: lp.LPNumber,
		OrgID:    orgID(ctx),
		Status:   repository.StatusAvailable,
		QAStatus: lp.QAStatus,
	})
}

// LPQAUpdated publishes a QA status change event.
func (p *Publisher) LPQAUpdated(ctx context.Context, lp *repository.LicensePlate, qaStatus string) {
	p.publish(ctx, messaging.EventLPQAUpdated, messaging.LPStatusEvent{
		LPID:     lp.ID,
		LPNumber: lp.LPNumber,
		OrgID:    orgID(ctx),
		Status:   lp.Status,
		QAStatus: qaStatus,
	})
}

// LPConsumed publishes a consumption event.
func (p *Publisher) LPConsumed(ctx context.Context, lp *repository.LicensePlate, consumed messaging.LPConsumedEvent) {
	consumed.LPID = lp.ID
	consumed.LPNumber = lp.LPNumber
	consumed.OrgID = orgID(ctx)
	consumed.ProductID = lp.ProductID
	p.publish(ctx, messaging.EventLPConsumed, consumed)
}

// LPConsumptionReversed publishes a reversal event.
func (p *Publisher) LPConsumptionReversed(ctx context.Context, lp *repository.LicensePlate, reversed messaging.LPConsumedEvent) {
	reversed.LPID = lp.ID
	reversed.LPNumber = lp.LPNumber
	reversed.OrgID = orgID(ctx)
	reversed.ProductID = lp.ProductID
	p.publish(ctx, messaging.EventLPConsumptionReversed, reversed)
}

// LPMerged publishes a merge event.
func (p *Publisher) LPMerged(ctx context.Context, newLP *repository.LicensePlate, sourceLPIDs []string) {
	p.publish(ctx, messaging.EventLPMerged, messaging.LPMergedEvent{
		NewLPID:     newLP.ID,
		NewLPNumber: newLP.LPNumber,
		OrgID:       orgID(ctx),
		ProductID:   newLP.ProductID,
		Quantity:    newLP.Quantity,
		SourceLPIDs: sourceLPIDs,
	})
}

// ReceiptCompleted publishes a goods receipt completion event.
func (p *Publisher) ReceiptCompleted(ctx context.Context, receipt *repository.GoodsReceipt, orderStatus string, lpIDs []string) {
	p.publish(ctx, messaging.EventReceiptCompleted, messaging.ReceiptCompletedEvent{
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		OrgID:         orgID(ctx),
		OrderType:     receipt.OrderType,
		OrderID:       receipt.OrderID,
		OrderStatus:   orderStatus,
		WarehouseID:   receipt.WarehouseID,
		ItemCount:     len(lpIDs),
		LPIDs:         lpIDs,
	})
}

// OverConsumptionRequested publishes a submission event.
func (p *Publisher) OverConsumptionRequested(ctx context.Context, req *repository.OverConsumptionRequest) {
	p.publish(ctx, messaging.EventOverConsumptionRequested, messaging.OverConsumptionEvent{
		RequestID:   req.ID,
		OrgID:       orgID(ctx),
		WorkOrderID: req.WorkOrderID,
		Quantity:    req.Quantity,
		Status:      req.Status,
	})
}

// OverConsumptionDecided publishes a decision event.
func (p *Publisher) OverConsumptionDecided(ctx context.Context, req *repository.OverConsumptionRequest) {
	evt := messaging.OverConsumptionEvent{
		RequestID:   req.ID,
		OrgID:       orgID(ctx),
		WorkOrderID: req.WorkOrderID,
		Quantity:    req.Quantity,
		Status:      req.Status,
	}
	if req.DecidedBy != nil {
		evt.DecidedBy = *req.DecidedBy
	}
	if req.DecisionReason != nil {
		evt.Reason = *req.DecisionReason
	}
	p.publish(ctx, messaging.EventOverConsumptionDecided, evt)
}
