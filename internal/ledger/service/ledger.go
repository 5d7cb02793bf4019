package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// LedgerService owns license plate state transitions: block, unblock,
// QA release and administrative correction.
type LedgerService struct {
	db          *database.DB
	lpRepo      *repository.LicensePlateRepository
	catalogRepo *repository.CatalogRepository
	publisher   *events.Publisher
	logger      *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *database.DB, lpRepo *repository.LicensePlateRepository, catalogRepo *repository.CatalogRepository, publisher *events.Publisher, log *logger.Logger) *LedgerService {
	return &LedgerService{
		db:          db,
		lpRepo:      lpRepo,
		catalogRepo: catalogRepo,
		publisher:   publisher,
		logger:      log,
	}
}

// GetLicensePlate returns a license plate by ID.
func (s *LedgerService) GetLicensePlate(ctx context.Context, id string) (*repository.LicensePlate, error) {
	return s.lpRepo.GetByID(ctx, id)
}

// Block puts a license plate on hold. Blocked plates never come back from
// allocation queries and cannot be consumed until unblocked.
func (s *LedgerService) Block(ctx context.Context, id, reason string) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, errors.ValidationMessage("block reason is required")
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.lpRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if lp.Status == repository.StatusConsumed {
			return errors.InvalidTransition("license plate " + lp.LPNumber + " is consumed and cannot be blocked")
		}
		if err := s.lpRepo.UpdateStatus(ctx, id, repository.StatusBlocked, &reason); err != nil {
			return err
		}
		lp.Status = repository.StatusBlocked
		lp.BlockedReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LPBlocked(ctx, lp, reason)
	return lp, nil
}

// Unblock releases a blocked license plate back to available.
func (s *LedgerService) Unblock(ctx context.Context, id string) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.lpRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if lp.Status == repository.StatusConsumed {
			return errors.InvalidTransition("license plate " + lp.LPNumber + " is consumed and cannot be unblocked")
		}
		if lp.Status != repository.StatusBlocked {
			return errors.InvalidTransition("license plate " + lp.LPNumber + " is not blocked")
		}
		if err := s.lpRepo.UpdateStatus(ctx, id, repository.StatusAvailable, nil); err != nil {
			return err
		}
		lp.Status = repository.StatusAvailable
		lp.BlockedReason = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LPUnblocked(ctx, lp)
	return lp, nil
}

// UpdateQAStatus sets the QA gate on a license plate. It is independent of
// the availability status, consumed plates excepted.
func (s *LedgerService) UpdateQAStatus(ctx context.Context, id, qaStatus string) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	switch qaStatus {
	case repository.QAPending, repository.QAPassed, repository.QAFailed, repository.QAQuarantine:
	default:
		return nil, errors.ValidationMessage("invalid QA status: " + qaStatus)
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.lpRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if lp.Status == repository.StatusConsumed {
			return errors.InvalidTransition("license plate " + lp.LPNumber + " is consumed and cannot be modified")
		}
		if err := s.lpRepo.UpdateQAStatus(ctx, id, qaStatus); err != nil {
			return err
		}
		lp.QAStatus = qaStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LPQAUpdated(ctx, lp, qaStatus)
	return lp, nil
}

// CorrectionInput carries an administrative correction. Nil fields keep the
// current value.
type CorrectionInput struct {
	Quantity   *decimal.Decimal
	LocationID *string
}

// Correct applies an administrative quantity/location correction. It bypasses
// consumption accounting on purpose, for stocktake adjustments and mis-scan
// fixes.
func (s *LedgerService) Correct(ctx context.Context, id string, input CorrectionInput) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	if input.Quantity == nil && input.LocationID == nil {
		return nil, errors.ValidationMessage("correction requires a quantity or a location")
	}
	if input.Quantity != nil && input.Quantity.IsNegative() {
		return nil, errors.ValidationMessage("quantity must not be negative")
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.lpRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if lp.Status == repository.StatusConsumed {
			return errors.InvalidTransition("license plate " + lp.LPNumber + " is consumed and cannot be corrected")
		}

		quantity := lp.Quantity
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		locationID := lp.LocationID
		if input.LocationID != nil {
			locationID = *input.LocationID
		}
		if locationID != lp.LocationID {
			location, err := s.catalogRepo.GetLocation(ctx, locationID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.ValidationMessage("location does not exist")
				}
				return err
			}
			if location.WarehouseID != lp.WarehouseID {
				return errors.CrossWarehouse("location " + locationID + " belongs to warehouse " +
					location.WarehouseID + ", not " + lp.WarehouseID)
			}
		}

		if err := s.lpRepo.UpdateCorrection(ctx, id, quantity, locationID); err != nil {
			return err
		}
		lp.Quantity = quantity
		lp.LocationID = locationID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lp_number", lp.LPNumber).
		Str("quantity", lp.Quantity.String()).
		Msg("license plate corrected")
	return lp, nil
}
