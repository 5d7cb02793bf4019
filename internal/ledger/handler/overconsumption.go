package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/errors"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/httputil"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
)

// OverConsumptionHandler serves the over-consumption approval endpoints.
type OverConsumptionHandler struct {
	requests *service.OverConsumptionService
	logger   *logger.Logger
}

// NewOverConsumptionHandler creates a new over-consumption handler
func NewOverConsumptionHandler(requests *service.OverConsumptionService, log *logger.Logger) *OverConsumptionHandler {
	return &OverConsumptionHandler{
		requests: requests,
		logger:   log,
	}
}

// RegisterRoutes registers the over-consumption routes
func (h *OverConsumptionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/over-consumption", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.ListByWorkOrder)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/approve", h.Approve)
			r.Post("/reject", h.Reject)
			r.Post("/cancel", h.Cancel)
		})
	})
}

// SubmitRequest is the over-consumption submission body
type SubmitRequest struct {
	WorkOrderID string          `json:"work_order_id" validate:"required,uuid"`
	ProductID   string          `json:"product_id" validate:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity"`
	UoM         string          `json:"uom,omitempty"`
	Reason      string          `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Submit handles POST /over-consumption
func (h *OverConsumptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	request, err := h.requests.Submit(r.Context(), service.SubmitInput{
		WorkOrderID: req.WorkOrderID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		UoM:         req.UoM,
		Reason:      req.Reason,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, request)
}

// Get handles GET /over-consumption/{id}
func (h *OverConsumptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	request, err := h.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, request)
}

// ListByWorkOrder handles GET /over-consumption?work_order_id=...
func (h *OverConsumptionHandler) ListByWorkOrder(w http.ResponseWriter, r *http.Request) {
	workOrderID := r.URL.Query().Get("work_order_id")
	if workOrderID == "" {
		httputil.Error(w, errors.ValidationMessage("work_order_id is required"))
		return
	}

	requests, err := h.requests.ListByWorkOrder(r.Context(), workOrderID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, requests)
}

// DecisionRequest is the approve/reject body
type DecisionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Approve handles POST /over-consumption/{id}/approve
func (h *OverConsumptionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	request, err := h.requests.Approve(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, request)
}

// Reject handles POST /over-consumption/{id}/reject
func (h *OverConsumptionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	request, err := h.requests.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, request)
}

// Cancel handles POST /over-consumption/{id}/cancel
func (h *OverConsumptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	request, err := h.requests.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, request)
}
