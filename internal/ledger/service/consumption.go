package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/messaging"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// ConsumptionService depletes license plates for production use and
// compensates mistaken consumptions.
type ConsumptionService struct {
	db        *database.DB
	lpRepo    *repository.LicensePlateRepository
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewConsumptionService creates a new consumption service
func NewConsumptionService(db *database.DB, lpRepo *repository.LicensePlateRepository, publisher *events.Publisher, log *logger.Logger) *ConsumptionService {
	return &ConsumptionService{
		db:        db,
		lpRepo:    lpRepo,
		publisher: publisher,
		logger:    log,
	}
}

// Consume subtracts quantity from a license plate. Consuming the full
// on-hand quantity flips the plate to consumed and records the work order;
// a partial consumption leaves it available for any order.
//
// The availability check and the subtraction are one conditional update, so
// two concurrent consumers cannot both drain the same plate. The loser's
// update matches nothing and gets the precise failure from a re-read inside
// the same transaction.
func (s *ConsumptionService) Consume(ctx context.Context, lpID string, quantity decimal.Decimal, workOrderID string) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, errors.ValidationMessage("quantity must be positive")
	}

	var workOrderRef *string
	if workOrderID != "" {
		workOrderRef = &workOrderID
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.lpRepo.ConsumeQuantity(ctx, lpID, quantity, workOrderRef)
		if err != nil {
			return err
		}
		if lp == nil {
			return s.classifyConsumeFailure(ctx, lpID, quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fullyConsumed := lp.Status == repository.StatusConsumed
	s.publisher.LPConsumed(ctx, lp, messaging.LPConsumedEvent{
		Quantity:          quantity,
		RemainingQuantity: lp.Quantity,
		WorkOrderID:       workOrderID,
		FullyConsumed:     fullyConsumed,
	})

	s.logger.Info().
		Str("lp_number", lp.LPNumber).
		Str("quantity", quantity.String()).
		Str("remaining", lp.Quantity.String()).
		Bool("fully_consumed", fullyConsumed).
		Msg("license plate consumed")
	return lp, nil
}

// classifyConsumeFailure re-reads the plate within the transaction and maps
// the failed precondition to its error kind, checked in precedence order.
func (s *ConsumptionService) classifyConsumeFailure(ctx context.Context, lpID string, quantity decimal.Decimal) error {
	lp, err := s.lpRepo.GetByID(ctx, lpID)
	if err != nil {
		return err
	}

	if lp.Status != repository.StatusAvailable {
		return errors.NotAvailable("license plate " + lp.LPNumber + " is " + lp.Status)
	}
	if lp.QAStatus != repository.QAPassed {
		return errors.QANotPassed("license plate " + lp.LPNumber + " has QA status " + lp.QAStatus)
	}
	if lp.IsExpired(time.Now().UTC()) {
		return errors.Expired("license plate " + lp.LPNumber + " expired on " + lp.ExpiryDate.Format("2006-01-02"))
	}
	if lp.Quantity.LessThan(quantity) {
		return errors.InsufficientQuantity(
			"license plate " + lp.LPNumber + " has " + lp.Quantity.String() + " " + lp.UoM +
				", requested " + quantity.String())
	}
	return errors.Conflict("consumption did not apply, retry")
}

// ReverseConsumption adds quantity back to a plate and restores available
// status. It compensates a mistaken consumption and assumes the original
// consumption was the only mutation since; QA status is not re-derived.
func (s *ConsumptionService) ReverseConsumption(ctx context.Context, lpID string, quantity decimal.Decimal, workOrderID string) (*repository.LicensePlate, error) {
	if !quantity.IsPositive() {
		return nil, errors.ValidationMessage("quantity must be positive")
	}

	lp, err := s.lpRepo.RestoreQuantity(ctx, lpID, quantity)
	if err != nil {
		return nil, err
	}

	s.publisher.LPConsumptionReversed(ctx, lp, messaging.LPConsumedEvent{
		Quantity:          quantity,
		RemainingQuantity: lp.Quantity,
		WorkOrderID:       workOrderID,
	})

	s.logger.Info().
		Str("lp_number", lp.LPNumber).
		Str("quantity", quantity.String()).
		Msg("consumption reversed")
	return lp, nil
}
