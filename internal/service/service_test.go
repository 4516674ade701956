package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	invoices  []*models.InvoiceCreatedEvent
	movements []*models.MovementRecordedEvent
	deleted   []*models.AssetDeletedEvent
}

func (p *recordingPublisher) PublishInvoiceCreated(_ context.Context, e *models.InvoiceCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices = append(p.invoices, e)
	return nil
}

func (p *recordingPublisher) PublishMovementRecorded(_ context.Context, e *models.MovementRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movements = append(p.movements, e)
	return nil
}

func (p *recordingPublisher) PublishAssetDeleted(_ context.Context, e *models.AssetDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, e)
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) ClaimIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.keys[key]; ok {
		return false, v, nil
	}
	m.keys[key] = ""
	return true, "", nil
}

func (m *memIdempotency) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = value
	return nil
}

func (m *memIdempotency) ReleaseIdempotencyKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type testEnv struct {
	repo         *memstore.Store
	publisher    *recordingPublisher
	idempotency  *memIdempotency
	allocator    *SequenceAllocator
	ledger       *MovementLedger
	assets       *AssetService
	invoices     *InvoiceService
	verification *VerificationService
	reconciler   *Reconciler
	reports      *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memstore.New()
	pub := &recordingPublisher{}
	idem := &memIdempotency{keys: map[string]string{}}
	alloc := NewSequenceAllocator(repo, "INV")
	alloc.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	ledger := NewMovementLedger(repo, pub)

	return &testEnv{
		repo:         repo,
		publisher:    pub,
		idempotency:  idem,
		allocator:    alloc,
		ledger:       ledger,
		assets:       NewAssetService(repo, ledger, pub),
		invoices:     NewInvoiceService(repo, alloc, ledger, pub, idem, time.Hour),
		verification: NewVerificationService(repo),
		reconciler:   NewReconciler(repo, nil, time.Minute),
		reports:      NewReportService(repo),
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func (e *testEnv) createAsset(t *testing.T, name, category string, price string, qty int) *models.Asset {
	t.Helper()
	a, err := e.assets.Create(context.Background(), &AssetInput{
		Name:      strPtr(name),
		Category:  strPtr(category),
		UnitPrice: decPtr(price),
		Quantity:  intPtr(qty),
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) movements(t *testing.T) []models.Movement {
	t.Helper()
	ms, err := e.ledger.List(context.Background(), models.MovementFilter{})
	require.NoError(t, err)
	return ms
}

func (e *testEnv) assetQty(t *testing.T, id uuid.UUID) int {
	t.Helper()
	a, err := e.assets.Get(context.Background(), id)
	require.NoError(t, err)
	return a.Quantity
}

func saleRequest(buyer string, items ...InvoiceItemRequest) *CreateInvoiceRequest {
	return &CreateInvoiceRequest{
		Type:          models.InvoiceTypeSale,
		Buyer:         buyer,
		Items:         items,
		PaymentMethod: models.PaymentMethodCash,
	}
}

func purchaseRequest(seller string, items ...InvoiceItemRequest) *CreateInvoiceRequest {
	return &CreateInvoiceRequest{
		Type:          models.InvoiceTypePurchase,
		Seller:        seller,
		Items:         items,
		PaymentMethod: models.PaymentMethodBank,
	}
}

func line(assetID uuid.UUID, qty int, price string) InvoiceItemRequest {
	return InvoiceItemRequest{AssetID: assetID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

// TestScenarios walks the lifecycle of one asset from creation to deletion
func TestScenarios(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A: create
	chair := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 10)
	assert.Equal(t, 10, chair.Quantity)

	ms := env.movements(t)
	require.Len(t, ms, 1)
	assert.Equal(t, models.ActionAdded, ms[0].Action)
	assert.Equal(t, models.MovementTypeAdjustment, ms[0].Type)
	assert.Equal(t, 10, ms[0].Quantity)

	// B: PATCH quantity 10 -> 7
	updated, err := env.assets.Update(ctx, chair.ID, &AssetInput{Quantity: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	ms = env.movements(t)
	require.Len(t, ms, 2)
	assert.Equal(t, models.ActionStockDecreased, ms[0].Action)
	assert.Equal(t, 3, ms[0].Quantity)

	// C: sale of 3 at 500 with 5% VAT
	req := saleRequest("Acme Ltd", line(chair.ID, 3, "500"))
	req.VAT = decimal.NewFromInt(5)
	invoice, replayed, err := env.invoices.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "INV-2025-0001", invoice.InvoiceNumber)
	assertDecimal(t, "1500", invoice.Subtotal)
	assertDecimal(t, "75", invoice.VATAmount)
	assertDecimal(t, "1575", invoice.GrandTotal)
	assert.Equal(t, models.StockStatusApplied, invoice.StockStatus)
	assert.Equal(t, 4, env.assetQty(t, chair.ID))

	ms = env.movements(t)
	require.Len(t, ms, 3)
	assert.Equal(t, models.ActionSold, ms[0].Action)
	assert.Equal(t, models.MovementTypeSale, ms[0].Type)
	assert.Equal(t, 3, ms[0].Quantity)
	assert.Equal(t, invoice.InvoiceNumber, ms[0].InvoiceNumber)
	require.NotNil(t, ms[0].ReferenceInvoice)
	assert.Equal(t, invoice.ID, *ms[0].ReferenceInvoice)
	assert.Equal(t, "Acme Ltd", ms[0].PartyName)

	// D: oversell is rejected before any write
	_, _, err = env.invoices.Create(ctx, saleRequest("Acme Ltd", line(chair.ID, 100, "500")))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[0].quantity", ve.Field)
	assert.Equal(t, 4, env.assetQty(t, chair.ID))
	assert.Len(t, env.movements(t), 3)

	// E: unknown invoice number is audited
	_, err = env.verification.Verify(ctx, "INV-2025-9999", Caller{IP: "10.0.0.1", UserAgent: "curl/8"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	logs, err := env.verification.RecentLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "INV-2025-9999", logs[0].InvoiceNumber)
	assert.False(t, logs[0].Found)

	// F: delete logs the quantity held at deletion
	require.NoError(t, env.assets.Delete(ctx, chair.ID))
	ms = env.movements(t)
	require.Len(t, ms, 4)
	assert.Equal(t, models.ActionDeleted, ms[0].Action)
	assert.Equal(t, 4, ms[0].Quantity)
	assert.Equal(t, "Chair", ms[0].AssetName)

	_, err = env.assets.Get(ctx, chair.ID)
	require.ErrorAs(t, err, &nf)
	require.Len(t, env.publisher.deleted, 1)
	assert.Equal(t, chair.ID, env.publisher.deleted[0].AssetID)
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-0001", FormatInvoiceNumber("INV-2025", 1))
	assert.Equal(t, "INV-2025-0420", FormatInvoiceNumber("INV-2025", 420))
	assert.Equal(t, "INV-2025-12345", FormatInvoiceNumber("INV-2025", 12345))
}

func TestSequenceAllocator_ScopeFollowsYear(t *testing.T) {
	repo := memstore.New()
	alloc := NewSequenceAllocator(repo, "INV")
	ctx := context.Background()

	alloc.now = func() time.Time { return time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC) }
	n1, err := alloc.Next(ctx)
	require.NoError(t, err)
	n2, err := alloc.Next(ctx)
	require.NoError(t, err)

	alloc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC) }
	n3, err := alloc.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"INV-2024-0001", "INV-2024-0002", "INV-2025-0001"}, []string{n1, n2, n3})
}
