package service

import (
	"context"
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

// OutputService mints new license plates for production output and goods
// receipt.
type OutputService struct {
	db          *database.DB
	lpRepo      *repository.LicensePlateRepository
	catalogRepo *repository.CatalogRepository
	seqRepo     *repository.SequenceRepository
	publisher   *events.Publisher
	logger      *logger.Logger
}

// NewOutputService creates a new output service
func NewOutputService(db *database.DB, lpRepo *repository.LicensePlateRepository, catalogRepo *repository.CatalogRepository, seqRepo *repository.SequenceRepository, publisher *events.Publisher, log *logger.Logger) *OutputService {
	return &OutputService{
		db:          db,
		lpRepo:      lpRepo,
		catalogRepo: catalogRepo,
		seqRepo:     seqRepo,
		publisher:   publisher,
		logger:      log,
	}
}

// MintInput describes a license plate to mint. Source-specific provenance
// fields are set by the caller.
type MintInput struct {
	LPNumber            string
	ProductID           string
	Quantity            decimal.Decimal
	UoM                 string
	BatchNumber         *string
	SupplierBatchNumber *string
	ExpiryDate          *time.Time
	ManufactureDate     *time.Time
	WarehouseID         string
	LocationID          string
	Source              string
	SourceOrderNumber   *string
	GoodsReceiptID      *string
	WorkOrderID         *string
	ParentLPID          *string
	CatchWeight         *decimal.Decimal
	QAStatus            string
}

// OutputInput is the production output request.
type OutputInput struct {
	LPNumber        string
	ProductID       string
	Quantity        decimal.Decimal
	UoM             string
	BatchNumber     *string
	ExpiryDate      *time.Time
	ManufactureDate *time.Time
	WarehouseID     string
	LocationID      string
	WorkOrderID     string
	CatchWeight     *decimal.Decimal
}

// CreateOutputLP mints a license plate for produced goods. Expiry derives
// from the product shelf life when not supplied, and the QA gate defaults
// from the receiving warehouse configuration.
func (s *OutputService) CreateOutputLP(ctx context.Context, input OutputInput) (*repository.LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, errors.ValidationMessage("quantity must be positive")
	}
	if input.WorkOrderID == "" {
		return nil, errors.ValidationMessage("work_order_id is required")
	}

	var lp *repository.LicensePlate
	err = s.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		lp, err = s.Mint(ctx, MintInput{
			LPNumber:        input.LPNumber,
			ProductID:       input.ProductID,
			Quantity:        input.Quantity,
			UoM:             input.UoM,
			BatchNumber:     input.BatchNumber,
			ExpiryDate:      input.ExpiryDate,
			ManufactureDate: input.ManufactureDate,
			WarehouseID:     input.WarehouseID,
			LocationID:      input.LocationID,
			Source:          repository.SourceProduction,
			WorkOrderID:     &input.WorkOrderID,
			CatchWeight:     input.CatchWeight,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.LPCreated(ctx, lp)
	s.logger.Info().
		Str("lp_number", lp.LPNumber).
		Str("work_order_id", input.WorkOrderID).
		Msg("output license plate created")
	return lp, nil
}

// Mint creates a license plate after applying product and warehouse policy.
// Callers running a larger atomic operation invoke it inside their own RLS
// scope; no events are published here.
func (s *OutputService) Mint(ctx context.Context, input MintInput) (*repository.LicensePlate, error) {
	product, err := s.catalogRepo.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if product.BatchTracked && (input.BatchNumber == nil || *input.BatchNumber == "") {
		return nil, errors.BatchRequired("product " + product.Code + " requires a batch number")
	}

	location, err := s.catalogRepo.GetLocation(ctx, input.LocationID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ValidationMessage("location does not exist")
		}
		return nil, err
	}
	if location.WarehouseID != input.WarehouseID {
		return nil, errors.CrossWarehouse("location " + input.LocationID + " belongs to warehouse " +
			location.WarehouseID + ", not " + input.WarehouseID)
	}

	uom := input.UoM
	if uom == "" {
		uom = product.UoM
	}

	expiry := input.ExpiryDate
	if expiry == nil && product.ShelfLifeDays != nil {
		manufacture := time.Now().UTC()
		if input.ManufactureDate != nil {
			manufacture = *input.ManufactureDate
		}
		derived := manufacture.AddDate(0, 0, *product.ShelfLifeDays)
		expiry = &derived
	}

	qaStatus := input.QAStatus
	if qaStatus == "" {
		qaStatus = repository.QAPassed
		cfg, err := s.catalogRepo.GetWarehouseConfig(ctx, input.WarehouseID)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if cfg != nil && cfg.QARequiredOnReceipt {
			qaStatus = repository.QAPending
		}
	}

	lpNumber := input.LPNumber
	if lpNumber == "" {
		lpNumber, err = s.seqRepo.NextLPNumber(ctx)
		if err != nil {
			return nil, err
		}
	}

	lp := &repository.LicensePlate{
		LPNumber:            lpNumber,
		ProductID:           input.ProductID,
		Quantity:            input.Quantity,
		UoM:                 uom,
		BatchNumber:         input.BatchNumber,
		SupplierBatchNumber: input.SupplierBatchNumber,
		ExpiryDate:          expiry,
		ManufactureDate:     input.ManufactureDate,
		WarehouseID:         input.WarehouseID,
		LocationID:          input.LocationID,
		Status:              repository.StatusAvailable,
		QAStatus:            qaStatus,
		Source:              input.Source,
		SourceOrderNumber:   input.SourceOrderNumber,
		GoodsReceiptID:      input.GoodsReceiptID,
		WorkOrderID:         input.WorkOrderID,
		ParentLPID:          input.ParentLPID,
		CatchWeight:         input.CatchWeight,
		CreatedBy:           actor.IDFromContext(ctx),
	}
	if err := s.lpRepo.Create(ctx, lp); err != nil {
		return nil, err
	}
	return lp, nil
}
