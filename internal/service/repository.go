package service

import (
	"context"
	"time"

	"asset-service/internal/models"

	"github.com/google/uuid"
)

// Transactor runs fn as one unit of work. Repository calls made with the
// ctx handed to fn join it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SequenceRepository interface {
	NextSequence(ctx context.Context, key string) (int64, error)
}

type AssetRepository interface {
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetAssetForUpdate(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error)
	ListAssets(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error)
	FindDuplicateAsset(ctx context.Context, serial, name, category string, exclude uuid.UUID) (*models.Asset, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	AdjustAssetQuantity(ctx context.Context, id uuid.UUID, delta int) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

type MovementRepository interface {
	CreateMovement(ctx context.Context, m *models.Movement) error
	ListMovements(ctx context.Context, filter models.MovementFilter) ([]models.Movement, error)
	ListMovementsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Movement, error)
	CountMovements(ctx context.Context) (int, error)
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	MarkInvoiceStockApplied(ctx context.Context, id uuid.UUID) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	ListSuspectInvoices(ctx context.Context) ([]models.Invoice, error)
	CountInvoices(ctx context.Context) (int, error)
}

type VerificationRepository interface {
	CreateVerificationLog(ctx context.Context, l *models.VerificationLog) error
	ListVerificationLogs(ctx context.Context, limit int) ([]models.VerificationLog, error)
}

type EventRepository interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

type ReportRepository interface {
	AssetTotals(ctx context.Context) (*models.AssetTotals, error)
	CategoryTotals(ctx context.Context) ([]models.CategoryTotal, error)
	InvoiceMonthlyTotals(ctx context.Context) ([]models.MonthlyTotal, error)
}

// Repository is everything the services need from persistence.
// store.Store and memstore.Store both satisfy it.
type Repository interface {
	Transactor
	SequenceRepository
	AssetRepository
	MovementRepository
	InvoiceRepository
	VerificationRepository
	EventRepository
	ReportRepository
	Ping(ctx context.Context) error
}

// EventPublisher publishes domain events after commit
type EventPublisher interface {
	PublishInvoiceCreated(ctx context.Context, event *models.InvoiceCreatedEvent) error
	PublishMovementRecorded(ctx context.Context, event *models.MovementRecordedEvent) error
	PublishAssetDeleted(ctx context.Context, event *models.AssetDeletedEvent) error
}

// IdempotencyStore remembers which invoice answered an Idempotency-Key
type IdempotencyStore interface {
	// ClaimIdempotencyKey reserves key. When it is already held, claimed is
	// false and existing holds the stored value ("" while still in flight).
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (claimed bool, existing string, err error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

type noopPublisher struct{}

func (noopPublisher) PublishInvoiceCreated(context.Context, *models.InvoiceCreatedEvent) error {
	return nil
}

func (noopPublisher) PublishMovementRecorded(context.Context, *models.MovementRecordedEvent) error {
	return nil
}

func (noopPublisher) PublishAssetDeleted(context.Context, *models.AssetDeletedEvent) error {
	return nil
}
