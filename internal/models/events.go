package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeInvoiceCreated   = "INVOICE_CREATED"
	EventTypeMovementRecorded = "MOVEMENT_RECORDED"
	EventTypeAssetDeleted     = "ASSET_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event envelope
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// InvoiceCreatedEvent published after an invoice and its stock effects commit
type InvoiceCreatedEvent struct {
	BaseEvent
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Type          string            `json:"type"`
	PartyName     string            `json:"party_name"`
	GrandTotal    decimal.Decimal   `json:"grand_total"`
	Items         []InvoiceItemData `json:"items"`
}

// MovementRecordedEvent mirrors one ledger entry
type MovementRecordedEvent struct {
	BaseEvent
	MovementID    uuid.UUID `json:"movement_id"`
	AssetID       uuid.UUID `json:"asset_id"`
	Action        string    `json:"action"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
}

// AssetDeletedEvent published after an asset is removed
type AssetDeletedEvent struct {
	BaseEvent
	AssetID  uuid.UUID `json:"asset_id"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
}

// InvoiceItemData represents item data in events
type InvoiceItemData struct {
	AssetID   uuid.UUID       `json:"asset_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
