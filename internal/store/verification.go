package store

import (
	"context"

	"asset-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateVerificationLog appends a lookup audit entry
func (s *Store) CreateVerificationLog(ctx context.Context, l *models.VerificationLog) error {
	return sqlx.GetContext(ctx, s.ext(ctx), &l.VerifiedAt, `
		INSERT INTO verification_logs (id, invoice_number, ip, user_agent, found)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING verified_at`,
		l.ID, l.InvoiceNumber, l.IP, l.UserAgent, l.Found)
}

// ListVerificationLogs lists the most recent lookups
func (s *Store) ListVerificationLogs(ctx context.Context, limit int) ([]models.VerificationLog, error) {
	logs := []models.VerificationLog{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &logs,
		"SELECT * FROM verification_logs ORDER BY verified_at DESC LIMIT $1", limit)
	return logs, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.ext(ctx), &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
