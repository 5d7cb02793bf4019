package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/actor"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
)

const maxReasonLength = 500

// OverConsumptionService runs the approval workflow gating consumption
// beyond a work order's planned requirement. pending is the only
// non-terminal state.
type OverConsumptionService struct {
	repo      *repository.OverConsumptionRepository
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewOverConsumptionService creates a new over-consumption service
func NewOverConsumptionService(repo *repository.OverConsumptionRepository, publisher *events.Publisher, log *logger.Logger) *OverConsumptionService {
	return &OverConsumptionService{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// SubmitInput is the over-consumption request.
type SubmitInput struct {
	WorkOrderID string
	ProductID   string
	Quantity    decimal.Decimal
	UoM         string
	Reason      string
}

// Submit files a pending request for the quantity exceeding the plan.
func (s *OverConsumptionService) Submit(ctx context.Context, input SubmitInput) (*repository.OverConsumptionRequest, error) {
	if input.WorkOrderID == "" {
		return nil, errors.ValidationMessage("work_order_id is required")
	}
	if input.ProductID == "" {
		return nil, errors.ValidationMessage("product_id is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, errors.ValidationMessage("quantity must be positive")
	}
	if err := checkReason(input.Reason); err != nil {
		return nil, err
	}

	req := &repository.OverConsumptionRequest{
		WorkOrderID: input.WorkOrderID,
		ProductID:   input.ProductID,
		Quantity:    input.Quantity,
		UoM:         input.UoM,
		Reason:      input.Reason,
		RequestedBy: actor.IDFromContext(ctx),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.publisher.OverConsumptionRequested(ctx, req)
	s.logger.Info().
		Str("request_id", req.ID).
		Str("work_order_id", req.WorkOrderID).
		Str("quantity", req.Quantity.String()).
		Msg("over-consumption requested")
	return req, nil
}

// Get returns a request by ID.
func (s *OverConsumptionService) Get(ctx context.Context, id string) (*repository.OverConsumptionRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByWorkOrder returns the requests filed against a work order.
func (s *OverConsumptionService) ListByWorkOrder(ctx context.Context, workOrderID string) ([]*repository.OverConsumptionRequest, error) {
	return s.repo.ListByWorkOrder(ctx, workOrderID)
}

// Approve authorizes the over-consumption. The reason is optional.
func (s *OverConsumptionService) Approve(ctx context.Context, id, reason string) (*repository.OverConsumptionRequest, error) {
	if err := checkReason(reason); err != nil {
		return nil, err
	}
	var decisionReason *string
	if reason != "" {
		decisionReason = &reason
	}
	return s.decide(ctx, id, repository.RequestApproved, decisionReason)
}

// Reject declines the over-consumption. The reason is mandatory.
func (s *OverConsumptionService) Reject(ctx context.Context, id, reason string) (*repository.OverConsumptionRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationMessage("rejection reason is required")
	}
	if err := checkReason(reason); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, repository.RequestRejected, &reason)
}

// Cancel withdraws a pending request, operator-initiated.
func (s *OverConsumptionService) Cancel(ctx context.Context, id string) (*repository.OverConsumptionRequest, error) {
	return s.decide(ctx, id, repository.RequestCancelled, nil)
}

func (s *OverConsumptionService) decide(ctx context.Context, id, status string, reason *string) (*repository.OverConsumptionRequest, error) {
	req, err := s.repo.Decide(ctx, id, status, actor.IDFromContext(ctx), reason)
	if err != nil {
		return nil, err
	}

	s.publisher.OverConsumptionDecided(ctx, req)
	s.logger.Info().
		Str("request_id", req.ID).
		Str("status", req.Status).
		Msg("over-consumption request decided")
	return req, nil
}

func checkReason(reason string) error {
	if len(reason) > maxReasonLength {
		return errors.ValidationMessage("reason must be at most 500 characters")
	}
	return nil
}
