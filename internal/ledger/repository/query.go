package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/pkg/org"
)

// Allocation strategies
const (
	StrategyFIFO = "FIFO"
	StrategyFEFO = "FEFO"
)

// Pagination defaults
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// AvailableParams filters the allocation candidate query.
type AvailableParams struct {
	ProductID   string
	WarehouseID string
	LocationID  string
	BatchNumber string
	Strategy    string
	Limit       int
}

// ListParams filters the general license plate listing.
type ListParams struct {
	Search       string
	ProductIDs   []string
	WarehouseIDs []string
	LocationIDs  []string
	Statuses     []string
	QAStatuses   []string
	Sources      []string
	BatchNumber  string
	WorkOrderID  string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	ExpiryFrom   *time.Time
	ExpiryTo     *time.Time
	SortBy       string
	SortOrder    string
	Page         int
	Limit        int
}

// Normalize clamps pagination and defaults sorting.
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.SortBy == "" {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" && p.SortOrder != "desc" {
		p.SortOrder = "desc"
	}
}

// sortColumns whitelists sortable fields.
var sortColumns = map[string]string{
	"created_at":  "created_at",
	"lp_number":   "lp_number",
	"expiry_date": "expiry_date",
	"quantity":    "quantity",
	"status":      "status",
}

// availableWhere is the availability predicate: available status, QA passed,
// not yet expired. A plate expiring today still qualifies.
const availableWhere = `
	status = 'available'
	AND qa_status = 'passed'
	AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)`

// ListAvailable returns allocation candidates ordered by strategy.
// FIFO orders by receipt time, FEFO by expiry with dateless plates last.
// Ties break on created_at then lp_number so ordering is deterministic.
func (r *LicensePlateRepository) ListAvailable(ctx context.Context, params AvailableParams) ([]*LicensePlate, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, err
	}

	where, args := availableFilter(params)

	orderBy := "created_at ASC, lp_number ASC"
	if params.Strategy == StrategyFEFO {
		orderBy = "expiry_date ASC NULLS LAST, created_at ASC, lp_number ASC"
	}

	query := `SELECT ` + lpColumns + ` FROM license_plates WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + orderBy

	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var lps []*LicensePlate
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &lps, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return lps, nil
}

// availableFilter builds the availability predicate plus the optional
// warehouse, location and batch narrowing shared by the candidate list and
// its quantity aggregate.
func availableFilter(params AvailableParams) ([]string, []interface{}) {
	where := []string{availableWhere, "product_id = $1"}
	args := []interface{}{params.ProductID}

	if params.WarehouseID != "" {
		args = append(args, params.WarehouseID)
		where = append(where, fmt.Sprintf("warehouse_id = $%d", len(args)))
	}
	if params.LocationID != "" {
		args = append(args, params.LocationID)
		where = append(where, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if params.BatchNumber != "" {
		args = append(args, params.BatchNumber)
		where = append(where, fmt.Sprintf("batch_number = $%d", len(args)))
	}
	return where, args
}

// TotalAvailableQuantity sums available quantity across the plates matching
// the same filters ListAvailable applies. Strategy and limit are ignored.
func (r *LicensePlateRepository) TotalAvailableQuantity(ctx context.Context, params AvailableParams) (decimal.Decimal, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	where, args := availableFilter(params)
	query := `SELECT COALESCE(SUM(quantity), 0) FROM license_plates WHERE ` +
		strings.Join(where, " AND ")

	var total decimal.Decimal
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &total, query, args...)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// List returns license plates matching the filters plus the total match
// count. Multiple values within one filter are ORed, distinct filters are
// ANDed. Search matches lp_number and batch_number by prefix.
func (r *LicensePlateRepository) List(ctx context.Context, params ListParams) ([]*LicensePlate, int, error) {
	orgID, err := org.OrgID(ctx)
	if err != nil {
		return nil, 0, err
	}

	params.Normalize()

	where := []string{"1=1"}
	args := []interface{}{}

	addArrayFilter := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("%s = ANY($%d)", column, len(args)))
	}

	addArrayFilter("product_id", params.ProductIDs)
	addArrayFilter("warehouse_id", params.WarehouseIDs)
	addArrayFilter("location_id", params.LocationIDs)
	addArrayFilter("status", params.Statuses)
	addArrayFilter("qa_status", params.QAStatuses)
	addArrayFilter("source", params.Sources)

	if params.BatchNumber != "" {
		args = append(args, params.BatchNumber)
		where = append(where, fmt.Sprintf("batch_number = $%d", len(args)))
	}
	if params.WorkOrderID != "" {
		args = append(args, params.WorkOrderID)
		where = append(where, fmt.Sprintf("work_order_id = $%d", len(args)))
	}
	if len(params.Search) >= 2 {
		args = append(args, escapeLike(params.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(lp_number ILIKE $%d OR batch_number ILIKE $%d)", n, n))
	}
	if params.CreatedFrom != nil {
		args = append(args, *params.CreatedFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if params.CreatedTo != nil {
		args = append(args, *params.CreatedTo)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if params.ExpiryFrom != nil {
		args = append(args, *params.ExpiryFrom)
		where = append(where, fmt.Sprintf("expiry_date >= $%d", len(args)))
	}
	if params.ExpiryTo != nil {
		args = append(args, *params.ExpiryTo)
		where = append(where, fmt.Sprintf("expiry_date <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	sortColumn, ok := sortColumns[params.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "DESC"
	nulls := "LAST"
	if params.SortOrder == "asc" {
		direction = "ASC"
	}
	orderBy := fmt.Sprintf("%s %s NULLS %s, id %s", sortColumn, direction, nulls, direction)

	var total int
	var lps []*LicensePlate
	err = r.db.WithOrgRLS(ctx, orgID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM license_plates WHERE ` + whereClause
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		offset := (params.Page - 1) * params.Limit
		pagedArgs := append(args, params.Limit, offset)
		query := fmt.Sprintf(
			`SELECT %s FROM license_plates WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			lpColumns, whereClause, orderBy, len(pagedArgs)-1, len(pagedArgs),
		)
		return r.db.SelectContext(ctx, &lps, query, pagedArgs...)
	})
	if err != nil {
		return nil, 0, err
	}
	return lps, total, nil
}

// escapeLike escapes LIKE metacharacters so search terms match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
