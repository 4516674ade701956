package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for every amount
const MoneyScale int32 = 4

// Asset represents a trackable inventory item
type Asset struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Category     string          `db:"category" json:"category"`
	Serial       string          `db:"serial" json:"serial"`
	PurchaseDate *time.Time      `db:"purchase_date" json:"purchaseDate"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Supplier     string          `db:"supplier" json:"supplier"`
	Status       string          `db:"status" json:"status"`
	Location     string          `db:"location" json:"location"`
	ImageURL     string          `db:"image_url" json:"imageUrl"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Value returns quantity on hand times unit price
func (a *Asset) Value() decimal.Decimal {
	return a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// Invoice is an immutable record of one sale or purchase
type Invoice struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoiceNumber"`
	Type           string          `db:"type" json:"type"`
	Buyer          string          `db:"buyer" json:"buyer"`
	Seller         string          `db:"seller" json:"seller"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	VAT            decimal.Decimal `db:"vat" json:"vat"`
	VATAmount      decimal.Decimal `db:"vat_amount" json:"vatAmount"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grandTotal"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paidAmount"`
	ReturnedAmount decimal.Decimal `db:"returned_amount" json:"returnedAmount"`
	PaymentMethod  string          `db:"payment_method" json:"paymentMethod"`
	Notes          string          `db:"notes" json:"notes"`
	StockStatus    string          `db:"stock_status" json:"stockStatus"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	Items          []InvoiceItem   `db:"-" json:"items"`
}

// PartyName returns the counterparty for the invoice type
func (i *Invoice) PartyName() string {
	if i.Type == InvoiceTypePurchase {
		return i.Seller
	}
	return i.Buyer
}

// InvoiceItem is a line item snapshot; later asset edits never change it
type InvoiceItem struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	InvoiceID uuid.UUID       `db:"invoice_id" json:"-"`
	Position  int             `db:"position" json:"-"`
	AssetID   uuid.UUID       `db:"asset_id" json:"assetId"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Total     decimal.Decimal `db:"total" json:"total"`
}

// Movement is an append-only ledger entry for an asset
type Movement struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Seq              int64      `db:"seq" json:"-"`
	AssetID          uuid.UUID  `db:"asset_id" json:"assetId"`
	AssetName        string     `db:"asset_name" json:"assetName"`
	Action           string     `db:"action" json:"action"`
	Type             string     `db:"type" json:"type"`
	Quantity         int        `db:"quantity" json:"quantity"`
	ReferenceInvoice *uuid.UUID `db:"reference_invoice" json:"referenceInvoice,omitempty"`
	InvoiceNumber    string     `db:"invoice_number" json:"invoiceNumber"`
	PartyName        string     `db:"party_name" json:"partyName"`
	Remarks          string     `db:"remarks" json:"remarks"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// VerificationLog records one public invoice lookup
type VerificationLog struct {
	ID            uuid.UUID `db:"id" json:"id"`
	InvoiceNumber string    `db:"invoice_number" json:"invoiceNumber"`
	IP            string    `db:"ip" json:"ip"`
	UserAgent     string    `db:"user_agent" json:"userAgent"`
	Found         bool      `db:"found" json:"found"`
	VerifiedAt    time.Time `db:"verified_at" json:"verifiedAt"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
