package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NextSequence atomically increments and returns the counter for key,
// creating it on first use. One statement, so concurrent callers never
// observe the same value.
func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	var seq int64
	err := sqlx.GetContext(ctx, s.ext(ctx), &seq, `
		INSERT INTO counters (key, seq) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, key)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return seq, nil
}

// CreateInvoice inserts an invoice together with its line items
func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, invoice_number, type, buyer, seller, subtotal, discount, vat, vat_amount,
			grand_total, paid_amount, returned_amount, payment_method, notes, stock_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), &invoice.CreatedAt, query,
		invoice.ID, invoice.InvoiceNumber, invoice.Type, invoice.Buyer, invoice.Seller,
		invoice.Subtotal, invoice.Discount, invoice.VAT, invoice.VATAmount, invoice.GrandTotal,
		invoice.PaidAmount, invoice.ReturnedAmount, invoice.PaymentMethod, invoice.Notes, invoice.StockStatus)
	if err != nil {
		return translate(err)
	}

	for i := range invoice.Items {
		item := &invoice.Items[i]
		item.InvoiceID = invoice.ID
		item.Position = i
		_, err := s.ext(ctx).ExecContext(ctx, `
			INSERT INTO invoice_items (id, invoice_id, position, asset_id, name, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.InvoiceID, item.Position, item.AssetID, item.Name, item.Quantity, item.UnitPrice, item.Total)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item %d: %w", i, translate(err))
		}
	}
	return nil
}

// MarkInvoiceStockApplied flips the stock status once every line is applied
func (s *Store) MarkInvoiceStockApplied(ctx context.Context, id uuid.UUID) error {
	res, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE invoices SET stock_status = $1 WHERE id = $2", models.StockStatusApplied, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetInvoice retrieves an invoice with its items
func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := sqlx.GetContext(ctx, s.ext(ctx), &invoice, "SELECT * FROM invoices WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, []*models.Invoice{&invoice}); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceByNumber retrieves an invoice by exact invoice number
func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := sqlx.GetContext(ctx, s.ext(ctx), &invoice, "SELECT * FROM invoices WHERE invoice_number = $1", number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %q: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, []*models.Invoice{&invoice}); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoices lists invoices newest first
func (s *Store) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &invoices,
		"SELECT * FROM invoices ORDER BY created_at DESC, invoice_number DESC"); err != nil {
		return nil, err
	}
	ptrs := make([]*models.Invoice, len(invoices))
	for i := range invoices {
		ptrs[i] = &invoices[i]
	}
	if err := s.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListSuspectInvoices returns invoices whose stock application is not
// provably complete: still pending, or with a sold/purchased movement
// count that differs from the line item count.
func (s *Store) ListSuspectInvoices(ctx context.Context) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &invoices, `
		SELECT i.* FROM invoices i
		WHERE i.stock_status <> $1
		   OR (SELECT COUNT(*) FROM invoice_items ii WHERE ii.invoice_id = i.id)
		   <> (SELECT COUNT(*) FROM movements m
		       WHERE m.reference_invoice = i.id AND m.action IN ($2, $3))
		ORDER BY i.created_at`,
		models.StockStatusApplied, models.ActionSold, models.ActionPurchased)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*models.Invoice, len(invoices))
	for i := range invoices {
		ptrs[i] = &invoices[i]
	}
	if err := s.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) loadItems(ctx context.Context, invoices []*models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(invoices))
	byID := make(map[uuid.UUID]*models.Invoice, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		inv.Items = []models.InvoiceItem{}
		byID[inv.ID] = inv
	}

	query, args, err := sqlx.In("SELECT * FROM invoice_items WHERE invoice_id IN (?) ORDER BY invoice_id, position", ids)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var items []models.InvoiceItem
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &items, query, args...); err != nil {
		return fmt.Errorf("failed to load invoice items: %w", err)
	}
	for _, item := range items {
		if inv, ok := byID[item.InvoiceID]; ok {
			inv.Items = append(inv.Items, item)
		}
	}
	return nil
}
