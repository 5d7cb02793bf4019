package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// License plate lifecycle events
	EventLPCreated             = "ledger.lp.created"
	EventLPBlocked             = "ledger.lp.blocked"
	EventLPUnblocked           = "ledger.lp.unblocked"
	EventLPQAUpdated           = "ledger.lp.qa.updated"
	EventLPConsumed            = "ledger.lp.consumed"
	EventLPConsumptionReversed = "ledger.lp.consumption.reversed"
	EventLPMerged              = "ledger.lp.merged"

	// Goods receipt events
	EventReceiptCompleted = "ledger.receipt.completed"

	// Over-consumption workflow events
	EventOverConsumptionRequested = "ledger.overconsumption.requested"
	EventOverConsumptionDecided   = "ledger.overconsumption.decided"

	// Catalog events (consumed, published by the catalog service)
	EventProductUpdated         = "catalog.product.updated"
	EventWarehouseConfigUpdated = "catalog.warehouse.updated"
	EventLocationUpdated        = "catalog.location.updated"
)

// Exchange names
const (
	ExchangeLedgerEvents  = "ledger.events"
	ExchangeCatalogEvents = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Ledger events

// LPCreatedEvent is published when a license plate is minted
// (receipt, production output or merge).
type LPCreatedEvent struct {
	LPID        string          `json:"lp_id"`
	LPNumber    string          `json:"lp_number"`
	OrgID       string          `json:"org_id"`
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UoM         string          `json:"uom"`
	WarehouseID string          `json:"warehouse_id"`
	LocationID  string          `json:"location_id"`
	Source      string          `json:"source"`
}

// LPStatusEvent is published on block/unblock/QA transitions.
type LPStatusEvent struct {
	LPID     string `json:"lp_id"`
	LPNumber string `json:"lp_number"`
	OrgID    string `json:"org_id"`
	Status   string `json:"status"`
	QAStatus string `json:"qa_status"`
	Reason   string `json:"reason,omitempty"`
}

// LPConsumedEvent is published when quantity is consumed from a license plate.
type LPConsumedEvent struct {
	LPID              string          `json:"lp_id"`
	LPNumber          string          `json:"lp_number"`
	OrgID             string          `json:"org_id"`
	ProductID         string          `json:"product_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	WorkOrderID       string          `json:"work_order_id,omitempty"`
	FullyConsumed     bool            `json:"fully_consumed"`
}

// LPMergedEvent is published when source license plates are merged into a new one.
type LPMergedEvent struct {
	NewLPID     string          `json:"new_lp_id"`
	NewLPNumber string          `json:"new_lp_number"`
	OrgID       string          `json:"org_id"`
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourceLPIDs []string        `json:"source_lp_ids"`
}

// ReceiptCompletedEvent is published when a goods receipt commits.
type ReceiptCompletedEvent struct {
	ReceiptID     string `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	OrgID         string `json:"org_id"`
	OrderType     string `json:"order_type"`
	OrderID       string `json:"order_id"`
	OrderStatus   string `json:"order_status"`
	WarehouseID   string `json:"warehouse_id"`
	ItemCount     int    `json:"item_count"`
	LPIDs         []string `json:"lp_ids"`
}

// OverConsumptionEvent is published when a request is submitted or decided.
type OverConsumptionEvent struct {
	RequestID   string          `json:"request_id"`
	OrgID       string          `json:"org_id"`
	WorkOrderID string          `json:"work_order_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Status      string          `json:"status"`
	DecidedBy   string          `json:"decided_by,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// Catalog events (consumed)

// ProductUpdatedEvent carries product master data for the local cache.
type ProductUpdatedEvent struct {
	ProductID     string `json:"product_id"`
	OrgID         string `json:"org_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	UoM           string `json:"uom"`
	ShelfLifeDays *int   `json:"shelf_life_days,omitempty"`
	BatchTracked  bool   `json:"batch_tracked"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// WarehouseConfigUpdatedEvent carries warehouse receiving configuration
// for the local cache.
type WarehouseConfigUpdatedEvent struct {
	WarehouseID             string          `json:"warehouse_id"`
	OrgID                   string          `json:"org_id"`
	OverReceiptEnabled      bool            `json:"over_receipt_enabled"`
	OverReceiptTolerancePct decimal.Decimal `json:"over_receipt_tolerance_pct"`
	BatchRequiredOnReceipt  bool            `json:"batch_required_on_receipt"`
	ExpiryRequiredOnReceipt bool            `json:"expiry_required_on_receipt"`
	QARequiredOnReceipt     bool            `json:"qa_required_on_receipt"`
}

// LocationUpdatedEvent carries the location-to-warehouse mapping for the
// local cache.
type LocationUpdatedEvent struct {
	LocationID  string `json:"location_id"`
	OrgID       string `json:"org_id"`
	WarehouseID string `json:"warehouse_id"`
	Code        string `json:"code"`
	Deleted     bool   `json:"deleted,omitempty"`
}
