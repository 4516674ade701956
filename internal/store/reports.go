package store

import (
	"context"

	"asset-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// lowStockThreshold matches the dashboard's "low stock" badge: 0 < qty <= 2
const lowStockThreshold = 2

// AssetTotals aggregates the asset table
func (s *Store) AssetTotals(ctx context.Context) (*models.AssetTotals, error) {
	var totals models.AssetTotals
	err := sqlx.GetContext(ctx, s.ext(ctx), &totals, `
		SELECT COUNT(*) AS total_assets,
			COALESCE(SUM(quantity), 0) AS total_stock,
			COALESCE(SUM(quantity * unit_price), 0) AS stock_value,
			COUNT(*) FILTER (WHERE quantity > 0 AND quantity <= $1) AS low_stock
		FROM assets`, lowStockThreshold)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// CategoryTotals aggregates assets per category present in the table
func (s *Store) CategoryTotals(ctx context.Context) ([]models.CategoryTotal, error) {
	totals := []models.CategoryTotal{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &totals, `
		SELECT category, COUNT(*) AS assets,
			COALESCE(SUM(quantity), 0) AS stock,
			COALESCE(SUM(quantity * unit_price), 0) AS value
		FROM assets GROUP BY category`)
	return totals, err
}

// InvoiceMonthlyTotals sums grand totals per calendar month, oldest first
func (s *Store) InvoiceMonthlyTotals(ctx context.Context) ([]models.MonthlyTotal, error) {
	totals := []models.MonthlyTotal{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &totals, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
			SUM(grand_total) AS total
		FROM invoices GROUP BY 1 ORDER BY 1`)
	return totals, err
}

// CountInvoices counts every invoice
func (s *Store) CountInvoices(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.ext(ctx), &n, "SELECT COUNT(*) FROM invoices")
	return n, err
}
