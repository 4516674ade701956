package service

import (
	"bytes"
	"context"
	"fmt"

	"asset-service/internal/models"
	"asset-service/internal/util"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// MaxMovementList caps every ledger listing and export
const MaxMovementList = 500

const movementSheet = "Movements"

// MovementLedger appends and reads the append-only movement log
type MovementLedger struct {
	repo      MovementRepository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewMovementLedger creates a new ledger. publisher may be nil.
func NewMovementLedger(repo MovementRepository, publisher EventPublisher) *MovementLedger {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &MovementLedger{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Record appends m. It is called with the ctx of the unit of work that
// changed the asset, so the entry commits or rolls back with it.
func (l *MovementLedger) Record(ctx context.Context, m *models.Movement) error {
	if !models.IsMovementAction(m.Action) {
		return fmt.Errorf("unknown movement action %q", m.Action)
	}
	if m.Type == "" {
		m.Type = models.MovementTypeAdjustment
	}
	if !models.IsMovementType(m.Type) {
		return fmt.Errorf("unknown movement type %q", m.Type)
	}
	if m.Quantity < 0 {
		return fmt.Errorf("movement quantity must be a magnitude, got %d", m.Quantity)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	if err := l.repo.CreateMovement(ctx, m); err != nil {
		return &DependencyError{Op: "append movement", Err: err}
	}
	return nil
}

// Committed counts and publishes entries once their transaction committed.
// Publishing is best-effort; the ledger row is the record.
func (l *MovementLedger) Committed(ctx context.Context, movements ...models.Movement) {
	for _, m := range movements {
		util.MovementsRecordedTotal.WithLabelValues(m.Action).Inc()

		event := &models.MovementRecordedEvent{
			BaseEvent:     models.NewBaseEvent(models.EventTypeMovementRecorded),
			MovementID:    m.ID,
			AssetID:       m.AssetID,
			Action:        m.Action,
			Type:          m.Type,
			Quantity:      m.Quantity,
			InvoiceNumber: m.InvoiceNumber,
		}
		if err := l.publisher.PublishMovementRecorded(ctx, event); err != nil {
			util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
			l.logger.Error("Failed to publish MovementRecorded event",
				zap.String("movement_id", m.ID.String()),
				zap.Error(err))
		}
	}
}

// List returns entries newest first, capped at MaxMovementList
func (l *MovementLedger) List(ctx context.Context, filter models.MovementFilter) ([]models.Movement, error) {
	ctx, span := util.StartSpan(ctx, "MovementLedger.List")
	defer span.End()

	if filter.Type != "" && !models.IsMovementType(filter.Type) {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown movement type %q", filter.Type)}
	}
	if filter.Action != "" && !models.IsMovementAction(filter.Action) {
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown movement action %q", filter.Action)}
	}
	if filter.Limit <= 0 || filter.Limit > MaxMovementList {
		filter.Limit = MaxMovementList
	}

	movements, err := l.repo.ListMovements(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, &DependencyError{Op: "list movements", Err: err}
	}
	return movements, nil
}

// ListByInvoice returns the entries an invoice produced, in item order
func (l *MovementLedger) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Movement, error) {
	movements, err := l.repo.ListMovementsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, &DependencyError{Op: "list invoice movements", Err: err}
	}
	return movements, nil
}

// Export renders the filtered ledger as an XLSX workbook
func (l *MovementLedger) Export(ctx context.Context, filter models.MovementFilter) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "MovementLedger.Export")
	defer span.End()

	movements, err := l.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", movementSheet); err != nil {
		return nil, err
	}

	headers := []interface{}{"Date", "Asset", "Action", "Type", "Quantity", "Invoice", "Party", "Remarks"}
	if err := f.SetSheetRow(movementSheet, "A1", &headers); err != nil {
		return nil, err
	}

	for i, m := range movements {
		row := []interface{}{
			m.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			m.AssetName,
			m.Action,
			m.Type,
			m.Quantity,
			m.InvoiceNumber,
			m.PartyName,
			m.Remarks,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(movementSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
