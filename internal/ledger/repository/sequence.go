package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/database"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Sequence names
const (
	SequenceLicensePlate = "license_plate"
	SequenceGoodsReceipt = "goods_receipt"
)

// FormatLPNumber renders a sequence value as a license plate number.
func FormatLPNumber(value int64) string {
	return fmt.Sprintf("LP%08d", value)
}

// FormatReceiptNumber renders a sequence value as a goods receipt number.
func FormatReceiptNumber(year int, value int64) string {
	return fmt.Sprintf("GRN-%d-%d", year, value)
}

// SequenceRepository issues monotonically increasing per-organization numbers.
type SequenceRepository struct {
	db *database.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *database.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next returns the next value for the named sequence. The upsert takes a row
// lock on the sequence row, serializing concurrent callers so two plates can
// never share a number.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return 0, err
	}

	var value int64
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		query := `
			INSERT INTO lp_sequences (org_id, name, value)
			VALUES ($1, $2, 1)
			ON CONFLICT (org_id, name)
			DO UPDATE SET value = lp_sequences.value + 1
			RETURNING value
		`
		return r.db.GetContext(ctx, &value, query, orgID, name)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// NextLPNumber returns the next formatted license plate number.
func (r *SequenceRepository) NextLPNumber(ctx context.Context) (string, error) {
	value, err := r.Next(ctx, SequenceLicensePlate)
	if err != nil {
		return "", err
	}
	return FormatLPNumber(value), nil
}

// NextReceiptNumber returns the next formatted goods receipt number.
func (r *SequenceRepository) NextReceiptNumber(ctx context.Context) (string, error) {
	value, err := r.Next(ctx, SequenceGoodsReceipt)
	if err != nil {
		return "", err
	}
	return FormatReceiptNumber(time.Now().UTC().Year(), value), nil
}
