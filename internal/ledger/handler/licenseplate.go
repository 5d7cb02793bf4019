package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/repository"
	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/httputil"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
)

const dateLayout = "2006-01-02"

// LicensePlateHandler serves the license plate endpoints: ledger state
// transitions, allocation queries, consumption, production output and merge.
type LicensePlateHandler struct {
	ledger      *service.LedgerService
	allocation  *service.AllocationService
	consumption *service.ConsumptionService
	output      *service.OutputService
	merge       *service.MergeService
	logger      *logger.Logger
}

// NewLicensePlateHandler creates a new license plate handler
func NewLicensePlateHandler(ledger *service.LedgerService, allocation *service.AllocationService, consumption *service.ConsumptionService, output *service.OutputService, merge *service.MergeService, log *logger.Logger) *LicensePlateHandler {
	return &LicensePlateHandler{
		ledger:      ledger,
		allocation:  allocation,
		consumption: consumption,
		output:      output,
		merge:       merge,
		logger:      log,
	}
}

// RegisterRoutes registers the license plate routes
func (h *LicensePlateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/license-plates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.CreateOutput)
		r.Get("/available", h.ListAvailable)
		r.Get("/available/total", h.TotalAvailable)
		r.Post("/merge/validate", h.ValidateMerge)
		r.Post("/merge", h.Merge)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/block", h.Block)
			r.Post("/unblock", h.Unblock)
			r.Put("/qa-status", h.UpdateQAStatus)
			r.Put("/correct", h.Correct)
			r.Post("/consume", h.Consume)
			r.Post("/reverse-consumption", h.ReverseConsumption)
		})
	})
}

// Get handles GET /license-plates/{id}
func (h *LicensePlateHandler) Get(w http.ResponseWriter, r *http.Request) {
	lp, err := h.ledger.GetLicensePlate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// List handles GET /license-plates
func (h *LicensePlateHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lps, total, err := h.allocation.List(r.Context(), *params)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, lps, httputil.NewMeta(params.Page, params.Limit, int64(total)))
}

// ListAvailable handles GET /license-plates/available
func (h *LicensePlateHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := repository.AvailableParams{
		ProductID:   q.Get("product_id"),
		WarehouseID: q.Get("warehouse_id"),
		LocationID:  q.Get("location_id"),
		BatchNumber: q.Get("batch_number"),
		Strategy:    strings.ToUpper(q.Get("strategy")),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			httputil.Error(w, errors.ValidationMessage("limit must be a number"))
			return
		}
		params.Limit = n
	}

	lps, err := h.allocation.ListAvailable(r.Context(), params)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lps)
}

// TotalAvailable handles GET /license-plates/available/total
func (h *LicensePlateHandler) TotalAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	total, err := h.allocation.TotalAvailable(r.Context(), repository.AvailableParams{
		ProductID:   q.Get("product_id"),
		WarehouseID: q.Get("warehouse_id"),
		LocationID:  q.Get("location_id"),
		BatchNumber: q.Get("batch_number"),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]decimal.Decimal{"total_quantity": total})
}

// BlockRequest is the block request body
type BlockRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Block handles POST /license-plates/{id}/block
func (h *LicensePlateHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.ledger.Block(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// Unblock handles POST /license-plates/{id}/unblock
func (h *LicensePlateHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	lp, err := h.ledger.Unblock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// QAStatusRequest is the QA status update request body
type QAStatusRequest struct {
	QAStatus string `json:"qa_status" validate:"required,oneof=pending passed failed quarantine"`
}

// UpdateQAStatus handles PUT /license-plates/{id}/qa-status
func (h *LicensePlateHandler) UpdateQAStatus(w http.ResponseWriter, r *http.Request) {
	var req QAStatusRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.ledger.UpdateQAStatus(r.Context(), chi.URLParam(r, "id"), req.QAStatus)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// CorrectionRequest is the administrative correction request body
type CorrectionRequest struct {
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	LocationID *string          `json:"location_id,omitempty" validate:"omitempty,uuid"`
}

// Correct handles PUT /license-plates/{id}/correct
func (h *LicensePlateHandler) Correct(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.ledger.Correct(r.Context(), chi.URLParam(r, "id"), service.CorrectionInput{
		Quantity:   req.Quantity,
		LocationID: req.LocationID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// ConsumeRequest is the consumption request body
type ConsumeRequest struct {
	Quantity    decimal.Decimal `json:"quantity"`
	WorkOrderID string          `json:"work_order_id,omitempty" validate:"omitempty,uuid"`
}

// Consume handles POST /license-plates/{id}/consume
func (h *LicensePlateHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.consumption.Consume(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.WorkOrderID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// ReverseConsumption handles POST /license-plates/{id}/reverse-consumption
func (h *LicensePlateHandler) ReverseConsumption(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.consumption.ReverseConsumption(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.WorkOrderID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lp)
}

// CreateOutputRequest is the production output request body
type CreateOutputRequest struct {
	LPNumber        string           `json:"lp_number,omitempty"`
	ProductID       string           `json:"product_id" validate:"required,uuid"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UoM             string           `json:"uom,omitempty"`
	BatchNumber     *string          `json:"batch_number,omitempty"`
	ExpiryDate      *string          `json:"expiry_date,omitempty"`
	ManufactureDate *string          `json:"manufacture_date,omitempty"`
	WarehouseID     string           `json:"warehouse_id" validate:"required,uuid"`
	LocationID      string           `json:"location_id" validate:"required,uuid"`
	WorkOrderID     string           `json:"work_order_id" validate:"required,uuid"`
	CatchWeight     *decimal.Decimal `json:"catch_weight,omitempty"`
}

// CreateOutput handles POST /license-plates
func (h *LicensePlateHandler) CreateOutput(w http.ResponseWriter, r *http.Request) {
	var req CreateOutputRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := parseDatePtr(req.ExpiryDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	manufacture, err := parseDatePtr(req.ManufactureDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.output.CreateOutputLP(r.Context(), service.OutputInput{
		LPNumber:        req.LPNumber,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		UoM:             req.UoM,
		BatchNumber:     req.BatchNumber,
		ExpiryDate:      expiry,
		ManufactureDate: manufacture,
		WarehouseID:     req.WarehouseID,
		LocationID:      req.LocationID,
		WorkOrderID:     req.WorkOrderID,
		CatchWeight:     req.CatchWeight,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, lp)
}

// MergeRequest is the merge request body
type MergeRequest struct {
	LPIDs            []string `json:"lp_ids" validate:"required,min=2,dive,uuid"`
	TargetLocationID string   `json:"target_location_id,omitempty" validate:"omitempty,uuid"`
	LPNumber         string   `json:"lp_number,omitempty"`
}

// ValidateMergeRequest is the merge validation request body
type ValidateMergeRequest struct {
	LPIDs []string `json:"lp_ids" validate:"required,min=2,dive,uuid"`
}

// ValidateMerge handles POST /license-plates/merge/validate
func (h *LicensePlateHandler) ValidateMerge(w http.ResponseWriter, r *http.Request) {
	var req ValidateMergeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	summary, err := h.merge.ValidateMerge(r.Context(), req.LPIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}

// Merge handles POST /license-plates/merge
func (h *LicensePlateHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lp, err := h.merge.Merge(r.Context(), service.MergeInput{
		LPIDs:            req.LPIDs,
		TargetLocationID: req.TargetLocationID,
		LPNumber:         req.LPNumber,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, lp)
}

// parseListParams maps the list query string onto repository filters.
// Multi-value filters accept both repeated parameters and comma separation.
func parseListParams(r *http.Request) (*repository.ListParams, error) {
	q := r.URL.Query()
	params := &repository.ListParams{
		Search:       q.Get("search"),
		ProductIDs:   multiValue(q["product_id"]),
		WarehouseIDs: multiValue(q["warehouse_id"]),
		LocationIDs:  multiValue(q["location_id"]),
		Statuses:     multiValue(q["status"]),
		QAStatuses:   multiValue(q["qa_status"]),
		Sources:      multiValue(q["source"]),
		BatchNumber:  q.Get("batch_number"),
		WorkOrderID:  q.Get("work_order_id"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    strings.ToLower(q.Get("sort_order")),
	}

	var err error
	if params.CreatedFrom, err = parseDateParam(q.Get("created_from")); err != nil {
		return nil, err
	}
	if params.CreatedTo, err = parseDateParam(q.Get("created_to")); err != nil {
		return nil, err
	}
	if params.ExpiryFrom, err = parseDateParam(q.Get("expiry_from")); err != nil {
		return nil, err
	}
	if params.ExpiryTo, err = parseDateParam(q.Get("expiry_to")); err != nil {
		return nil, err
	}

	if page := q.Get("page"); page != "" {
		if params.Page, err = strconv.Atoi(page); err != nil {
			return nil, errors.ValidationMessage("page must be a number")
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if params.Limit, err = strconv.Atoi(limit); err != nil {
			return nil, errors.ValidationMessage("limit must be a number")
		}
	}
	return params, nil
}

func multiValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, errors.ValidationMessage("invalid date " + value + ", expected YYYY-MM-DD")
	}
	return &t, nil
}

func parseDatePtr(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	return parseDateParam(*value)
}
