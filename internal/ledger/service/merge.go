package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/events"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/actor"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// MergeService combines compatible license plates into one replacement
// plate, retiring the sources and recording genealogy.
type MergeService struct {
	db            *database.DB
	lpRepo        *repository.LicensePlateRepository
	catalogRepo   *repository.CatalogRepository
	seqRepo       *repository.SequenceRepository
	genealogyRepo *repository.GenealogyRepository
	publisher     *events.Publisher
	logger        *logger.Logger
}

// NewMergeService creates a new merge service
func NewMergeService(db *database.DB, lpRepo *repository.LicensePlateRepository, catalogRepo *repository.CatalogRepository, seqRepo *repository.SequenceRepository, genealogyRepo *repository.GenealogyRepository, publisher *events.Publisher, log *logger.Logger) *MergeService {
	return &MergeService{
		db:            db,
		lpRepo:        lpRepo,
		catalogRepo:   catalogRepo,
		seqRepo:       seqRepo,
		genealogyRepo: genealogyRepo,
		publisher:     publisher,
		logger:        log,
	}
}

// MergeSummary is the shared-attribute digest returned by validation for
// confirmation screens.
type MergeSummary struct {
	ProductID     string          `json:"product_id"`
	BatchNumber   *string         `json:"batch_number,omitempty"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	QAStatus      string          `json:"qa_status"`
	UoM           string          `json:"uom"`
	WarehouseID   string          `json:"warehouse_id"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	MemberCount   int             `json:"member_count"`
	LPNumbers     []string        `json:"lp_numbers"`
}

// MergeInput requests a merge. TargetLocationID defaults to the first
// source's location.
type MergeInput struct {
	LPIDs            []string
	TargetLocationID string
	LPNumber         string
}

// ValidateMerge checks that the plates form a merge equivalence class:
// identical product, batch, expiry, QA status, unit and warehouse, every
// member available. Both-NULL batch or expiry matches; NULL against a value
// does not.
func (s *MergeService) ValidateMerge(ctx context.Context, lpIDs []string) (*MergeSummary, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var summary *MergeSummary
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lps, err := s.lpRepo.GetByIDs(ctx, lpIDs)
		if err != nil {
			return err
		}
		summary, err = validateMergeSet(lpIDs, lps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Merge validates and executes atomically: one new plate with the summed
// quantity, every source retired, genealogy edges recorded. Sources are
// locked up front so a racing consumption either wins before the lock or
// fails its own precondition after.
func (s *MergeService) Merge(ctx context.Context, input MergeInput) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	var newLP *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lps, err := s.lpRepo.GetByIDsForUpdate(ctx, input.LPIDs)
		if err != nil {
			return err
		}
		summary, err := validateMergeSet(input.LPIDs, lps)
		if err != nil {
			return err
		}

		first := findByID(lps, input.LPIDs[0])
		locationID := input.TargetLocationID
		if locationID == "" {
			locationID = first.LocationID
		} else if locationID != first.LocationID {
			location, err := s.catalogRepo.GetLocation(ctx, locationID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.ValidationMessage("target location does not exist")
				}
				return err
			}
			if location.WarehouseID != summary.WarehouseID {
				return errors.CrossWarehouse("target location belongs to warehouse " + location.WarehouseID +
					", sources are in " + summary.WarehouseID)
			}
		}

		retired, err := s.lpRepo.RetireForMerge(ctx, input.LPIDs)
		if err != nil {
			return err
		}
		if retired != int64(len(input.LPIDs)) {
			return errors.NotAvailable("a source license plate changed status during the merge")
		}

		lpNumber := input.LPNumber
		if lpNumber == "" {
			lpNumber, err = s.seqRepo.NextLPNumber(ctx)
			if err != nil {
				return err
			}
		}

		newLP = &repository.LicensePlate{
			LPNumber:    lpNumber,
			ProductID:   summary.ProductID,
			Quantity:    summary.TotalQuantity,
			UoM:         summary.UoM,
			BatchNumber: summary.BatchNumber,
			ExpiryDate:  summary.ExpiryDate,
			WarehouseID: summary.WarehouseID,
			LocationID:  locationID,
			Status:      repository.StatusAvailable,
			QAStatus:    summary.QAStatus,
			Source:      repository.SourceMerge,
			ParentLPID:  &first.ID,
			CreatedBy:   actor.IDFromContext(ctx),
		}
		if err := s.lpRepo.Create(ctx, newLP); err != nil {
			return err
		}

		return s.genealogyRepo.LinkMerge(ctx, input.LPIDs, newLP.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LPMerged(ctx, newLP, input.LPIDs)
	s.logger.Info().
		Str("lp_number", newLP.LPNumber).
		Int("source_count", len(input.LPIDs)).
		Str("quantity", newLP.Quantity.String()).
		Msg("license plates merged")
	return newLP, nil
}

func validateMergeSet(requestedIDs []string, lps []*repository.LicensePlate) (*MergeSummary, error) {
	if len(requestedIDs) < 2 {
		return nil, errors.ValidationMessage("merge requires at least 2 license plates")
	}
	if len(lps) < len(requestedIDs) {
		found := make(map[string]bool, len(lps))
		for _, lp := range lps {
			found[lp.ID] = true
		}
		var missing []string
		for _, id := range requestedIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, errors.NotFound("license plates " + strings.Join(missing, ", "))
	}

	ref := lps[0]
	summary := &MergeSummary{
		ProductID:   ref.ProductID,
		BatchNumber: ref.BatchNumber,
		ExpiryDate:  ref.ExpiryDate,
		QAStatus:    ref.QAStatus,
		UoM:         ref.UoM,
		WarehouseID: ref.WarehouseID,
		MemberCount: len(lps),
	}

	for _, lp := range lps {
		switch {
		case lp.ProductID != ref.ProductID:
			return nil, errors.ValidationMessage("license plates have different products")
		case !equalStringPtr(lp.BatchNumber, ref.BatchNumber):
			return nil, errors.ValidationMessage("license plates have different batch numbers")
		case !equalDatePtr(lp.ExpiryDate, ref.ExpiryDate):
			return nil, errors.ValidationMessage("license plates have different expiry dates")
		case lp.QAStatus != ref.QAStatus:
			return nil, errors.ValidationMessage("license plates have different QA statuses")
		case lp.UoM != ref.UoM:
			return nil, errors.ValidationMessage("license plates have different units of measure")
		case lp.WarehouseID != ref.WarehouseID:
			return nil, errors.ValidationMessage("license plates are in different warehouses")
		case lp.Status != repository.StatusAvailable:
			return nil, errors.NotAvailable("license plate " + lp.LPNumber + " is " + lp.Status)
		}
		summary.TotalQuantity = summary.TotalQuantity.Add(lp.Quantity)
		summary.LPNumbers = append(summary.LPNumbers, lp.LPNumber)
	}
	return summary, nil
}

func findByID(lps []*repository.LicensePlate, id string) *repository.LicensePlate {
	for _, lp := range lps {
		if lp.ID == id {
			return lp
		}
	}
	return nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
