package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocker struct {
	held  bool
	calls int
}

func (l *stubLocker) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) (bool, error) {
	l.calls++
	if l.held {
		return false, nil
	}
	return true, fn(ctx)
}

func TestReconciler_HealthyInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	inv, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 2, "500")))
	require.NoError(t, err)

	finding, err := env.reconciler.CheckInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, finding)

	findings, err := env.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestReconciler_DetectsPendingAndMissingMovements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assetID := uuid.New()

	pending := models.Invoice{
		ID: uuid.New(), InvoiceNumber: "INV-2025-0100", Type: models.InvoiceTypeSale, Buyer: "Acme",
		StockStatus: models.StockStatusPending, GrandTotal: decimal.NewFromInt(10),
		Items: []models.InvoiceItem{{ID: uuid.New(), AssetID: assetID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	}
	unlogged := pending
	unlogged.ID = uuid.New()
	unlogged.InvoiceNumber = "INV-2025-0101"
	unlogged.StockStatus = models.StockStatusApplied
	env.repo.PutInvoice(pending)
	env.repo.PutInvoice(unlogged)

	finding, err := env.reconciler.CheckInvoice(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, ProblemStockPending, finding.Problem)

	findings, err := env.reconciler.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, ProblemStockPending, findings[0].Problem)
	assert.Equal(t, ProblemMovementCount, findings[1].Problem)
	assert.Equal(t, "INV-2025-0101", findings[1].InvoiceNumber)
}

func TestReconciler_CheckInvoiceNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reconciler.CheckInvoice(context.Background(), uuid.New())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestReconciler_SweepExclusive(t *testing.T) {
	env := newTestEnv(t)
	locker := &stubLocker{}
	r := NewReconciler(env.repo, locker, time.Minute)

	_, ran, err := r.SweepExclusive(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	locker.held = true
	findings, ran, err := r.SweepExclusive(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, findings)
	assert.Equal(t, 2, locker.calls)
}

func TestReconciler_SweepDependencyError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.InjectFault("ListSuspectInvoices", 0, errors.New("timeout"))

	_, err := env.reconciler.Sweep(context.Background())
	var de *DependencyError
	require.ErrorAs(t, err, &de)
}

func TestReconciler_HandleInvoiceCreatedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	_, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 1, "500")))
	require.NoError(t, err)

	require.Len(t, env.publisher.invoices, 1)
	event := env.publisher.invoices[0]

	require.NoError(t, env.reconciler.HandleInvoiceCreated(ctx, event))
	processed, err := env.repo.IsEventProcessed(ctx, event.EventID)
	require.NoError(t, err)
	assert.True(t, processed)

	// a redelivery is skipped before the invoice is read again
	env.repo.InjectFault("GetInvoice", 0, errors.New("should not be called"))
	require.NoError(t, env.reconciler.HandleInvoiceCreated(ctx, event))
}

func TestReportSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chair := env.createAsset(t, "Chair", models.CategoryFurniture, "100", 10)
	env.createAsset(t, "Mug", models.CategoryKitchenAccessories, "5", 2)
	env.createAsset(t, "Broken Radio", models.CategoryElectronics, "20", 0)

	_, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(chair.ID, 1, "150")))
	require.NoError(t, err)

	s, err := env.reports.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalAssets)
	assert.Equal(t, 11, s.TotalStock)
	assertDecimal(t, "910", s.StockValue)
	assert.Equal(t, 1, s.LowStock)
	assert.Equal(t, 1, s.TotalInvoices)
	assert.Equal(t, 4, s.TotalMovements)
	require.Len(t, s.MonthlyTotals, 1)
	assertDecimal(t, "150", s.MonthlyTotals[0].Total)

	require.Len(t, s.CategoryBreakdown, len(models.Categories))
	for i, c := range models.Categories {
		assert.Equal(t, c, s.CategoryBreakdown[i].Category)
	}
	assert.Equal(t, 9, s.CategoryBreakdown[1].Stock)
	assert.Equal(t, 0, s.CategoryBreakdown[3].Assets)
}
