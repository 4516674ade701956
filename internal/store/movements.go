package store

import (
	"context"
	"fmt"
	"strings"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateMovement appends a ledger entry
func (s *Store) CreateMovement(ctx context.Context, m *models.Movement) error {
	query := `
		INSERT INTO movements (id, asset_id, asset_name, action, type, quantity, reference_invoice,
			invoice_number, party_name, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), &m.CreatedAt, query,
		m.ID, m.AssetID, m.AssetName, m.Action, m.Type, m.Quantity, m.ReferenceInvoice,
		m.InvoiceNumber, m.PartyName, m.Remarks)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", translate(err))
	}
	return nil
}

// ListMovements lists ledger entries newest first
func (s *Store) ListMovements(ctx context.Context, filter models.MovementFilter) ([]models.Movement, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	query := "SELECT * FROM movements"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	movements := []models.Movement{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &movements, query, args...)
	return movements, err
}

// ListMovementsByInvoice lists the entries linked to an invoice in append order
func (s *Store) ListMovementsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Movement, error) {
	movements := []models.Movement{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &movements,
		"SELECT * FROM movements WHERE reference_invoice = $1 ORDER BY seq", invoiceID)
	return movements, err
}

// CountMovements counts every ledger entry
func (s *Store) CountMovements(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.ext(ctx), &n, "SELECT COUNT(*) FROM movements")
	return n, err
}
