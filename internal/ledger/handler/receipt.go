package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/CoderMariusz/MonoPilot-sub006/internal/ledger/service"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/httputil"
	"github.com/CoderMariusz/MonoPilot-sub006/pkg/logger"
)

// ReceiptHandler serves the goods receipt endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
	logger   *logger.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(receipts *service.ReceiptService, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receipts: receipts,
		logger:   log,
	}
}

// RegisterRoutes registers the receipt routes
func (h *ReceiptHandler) RegisterRoutes(r chi.Router) {
	r.Route("/receipts", func(r chi.Router) {
		r.Post("/purchase", h.ReceivePurchase)
		r.Post("/transfer", h.ReceiveTransfer)
	})
}

// ReceiptRequest is the goods receipt request body
type ReceiptRequest struct {
	OrderID     string               `json:"order_id" validate:"required,uuid"`
	WarehouseID string               `json:"warehouse_id" validate:"required,uuid"`
	LocationID  string               `json:"location_id" validate:"required,uuid"`
	Items       []ReceiptItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReceiptItemRequest is one received line in the request body
type ReceiptItemRequest struct {
	LineID              string          `json:"line_id" validate:"required,uuid"`
	Quantity            decimal.Decimal `json:"quantity"`
	BatchNumber         *string         `json:"batch_number,omitempty"`
	SupplierBatchNumber *string         `json:"supplier_batch_number,omitempty"`
	ExpiryDate          *string         `json:"expiry_date,omitempty"`
	VarianceReason      *string         `json:"variance_reason,omitempty" validate:"omitempty,max=500"`
}

// ReceivePurchase handles POST /receipts/purchase
func (h *ReceiptHandler) ReceivePurchase(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, h.receipts.ReceivePurchase)
}

// ReceiveTransfer handles POST /receipts/transfer
func (h *ReceiptHandler) ReceiveTransfer(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, h.receipts.ReceiveTransfer)
}

func (h *ReceiptHandler) receive(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, input service.ReceiptInput) (*service.ReceiptResult, error)) {
	var req ReceiptRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.ReceiptInput{
		OrderID:     req.OrderID,
		WarehouseID: req.WarehouseID,
		LocationID:  req.LocationID,
		Items:       make([]service.ReceiptItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		expiry, err := parseDatePtr(item.ExpiryDate)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		input.Items = append(input.Items, service.ReceiptItemInput{
			LineID:              item.LineID,
			Quantity:            item.Quantity,
			BatchNumber:         item.BatchNumber,
			SupplierBatchNumber: item.SupplierBatchNumber,
			ExpiryDate:          expiry,
			VarianceReason:      item.VarianceReason,
		})
	}

	result, err := fn(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, result)
}
