package service

import (
	"context"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
)

// AllocationService answers the read side: which plates can a picker take,
// and in what order.
type AllocationService struct {
	lpRepo *repository.LicensePlateRepository
}

// NewAllocationService creates a new allocation service
func NewAllocationService(lpRepo *repository.LicensePlateRepository) *AllocationService {
	return &AllocationService{lpRepo: lpRepo}
}

// ListAvailable returns allocation candidates for a product. FEFO is the
// default so perishable stock leaves the building oldest-expiry-first.
func (s *AllocationService) ListAvailable(ctx context.Context, params repository.AvailableParams) ([]*repository.LicensePlate, error) {
	if params.ProductID == "" {
		return nil, errors.ValidationMessage("product_id is required")
	}
	switch params.Strategy {
	case "":
		params.Strategy = repository.StrategyFEFO
	case repository.StrategyFIFO, repository.StrategyFEFO:
	default:
		return nil, errors.ValidationMessage("strategy must be FIFO or FEFO")
	}
	if params.Limit < 0 {
		return nil, errors.ValidationMessage("limit must not be negative")
	}

	return s.lpRepo.ListAvailable(ctx, params)
}

// TotalAvailable sums available quantity for a product, narrowed by the
// same warehouse, location and batch filters the candidate list accepts.
func (s *AllocationService) TotalAvailable(ctx context.Context, params repository.AvailableParams) (decimal.Decimal, error) {
	if params.ProductID == "" {
		return decimal.Zero, errors.ValidationMessage("product_id is required")
	}
	return s.lpRepo.TotalAvailableQuantity(ctx, params)
}

// List returns license plates matching the filter set with a total count for
// pagination.
func (s *AllocationService) List(ctx context.Context, params repository.ListParams) ([]*repository.LicensePlate, int, error) {
	if utf8.RuneCountInString(params.Search) == 1 {
		return nil, 0, errors.ValidationMessage("search term must be at least 2 characters")
	}
	for _, status := range params.Statuses {
		switch status {
		case repository.StatusAvailable, repository.StatusReserved, repository.StatusBlocked, repository.StatusConsumed:
		default:
			return nil, 0, errors.ValidationMessage("invalid status filter: " + status)
		}
	}
	for _, qa := range params.QAStatuses {
		switch qa {
		case repository.QAPending, repository.QAPassed, repository.QAFailed, repository.QAQuarantine:
		default:
			return nil, 0, errors.ValidationMessage("invalid QA status filter: " + qa)
		}
	}

	return s.lpRepo.List(ctx, params)
}
