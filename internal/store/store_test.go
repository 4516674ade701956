package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL and migrates it. Tests are
// skipped when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL to run")
	}
	require.NoError(t, Migrate(url, true))

	s, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAsset(qty int) *models.Asset {
	return &models.Asset{
		ID:        uuid.New(),
		Name:      "Chair " + uuid.NewString()[:8],
		Category:  models.CategoryFurniture,
		Serial:    "SN-" + uuid.NewString(),
		UnitPrice: decimal.RequireFromString("500.25"),
		Quantity:  qty,
		Status:    models.AssetStatusInStock,
	}
}

func TestNextSequence_Concurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := "TEST-" + uuid.NewString()

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.NextSequence(ctx, key)
			assert.NoError(t, err)
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestAdjustAssetQuantity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	asset := newTestAsset(2)
	require.NoError(t, s.CreateAsset(ctx, asset))

	_, err := s.AdjustAssetQuantity(ctx, asset.ID, -3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, err := s.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
	assert.True(t, got.UnitPrice.Equal(asset.UnitPrice))

	updated, err := s.AdjustAssetQuantity(ctx, asset.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)

	_, err = s.AdjustAssetQuantity(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAsset_NegativeQuantityRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	asset := newTestAsset(1)
	require.NoError(t, s.CreateAsset(ctx, asset))

	asset.Quantity = -1
	assert.ErrorIs(t, s.UpdateAsset(ctx, asset), ErrInsufficientStock)
}

func TestCreateAsset_DuplicateSerial(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := newTestAsset(1)
	require.NoError(t, s.CreateAsset(ctx, first))

	second := newTestAsset(1)
	second.Serial = first.Serial
	assert.ErrorIs(t, s.CreateAsset(ctx, second), ErrDuplicate)
}

func TestFindDuplicateAsset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	serialled := newTestAsset(1)
	require.NoError(t, s.CreateAsset(ctx, serialled))

	dup, err := s.FindDuplicateAsset(ctx, "", serialled.Name, serialled.Category, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, serialled.ID, dup.ID)

	dup, err = s.FindDuplicateAsset(ctx, serialled.Serial, "Other", models.CategoryOthers, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, serialled.ID, dup.ID)

	_, err = s.FindDuplicateAsset(ctx, "", serialled.Name, serialled.Category, serialled.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInTx_Rollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	asset := newTestAsset(3)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateAsset(ctx, asset))
		_, err := s.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetAsset(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoice_RoundTripAndSuspects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	asset := newTestAsset(5)
	require.NoError(t, s.CreateAsset(ctx, asset))

	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "TEST-" + uuid.NewString()[:8],
		Type:          models.InvoiceTypeSale,
		Buyer:         "Acme Ltd",
		Subtotal:      decimal.RequireFromString("1000.50"),
		VAT:           decimal.RequireFromString("5"),
		VATAmount:     decimal.RequireFromString("50.025"),
		GrandTotal:    decimal.RequireFromString("1050.525"),
		PaymentMethod: models.PaymentMethodCash,
		StockStatus:   models.StockStatusPending,
		Items: []models.InvoiceItem{{
			ID:        uuid.New(),
			AssetID:   asset.ID,
			Name:      asset.Name,
			Quantity:  2,
			UnitPrice: asset.UnitPrice,
			Total:     decimal.RequireFromString("1000.50"),
		}},
	}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context) error {
		return s.CreateInvoice(ctx, invoice)
	}))

	got, err := s.GetInvoiceByNumber(ctx, invoice.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, asset.ID, got.Items[0].AssetID)
	assert.True(t, got.GrandTotal.Equal(invoice.GrandTotal))

	suspects, err := s.ListSuspectInvoices(ctx)
	require.NoError(t, err)
	assert.True(t, containsInvoice(suspects, invoice.ID))

	require.NoError(t, s.CreateMovement(ctx, &models.Movement{
		ID:               uuid.New(),
		AssetID:          asset.ID,
		AssetName:        asset.Name,
		Action:           models.ActionSold,
		Type:             models.MovementTypeSale,
		Quantity:         2,
		ReferenceInvoice: &invoice.ID,
		InvoiceNumber:    invoice.InvoiceNumber,
	}))
	require.NoError(t, s.MarkInvoiceStockApplied(ctx, invoice.ID))

	suspects, err = s.ListSuspectInvoices(ctx)
	require.NoError(t, err)
	assert.False(t, containsInvoice(suspects, invoice.ID))

	_, err = s.GetInvoiceByNumber(ctx, invoice.InvoiceNumber[:len(invoice.InvoiceNumber)-1])
	assert.ErrorIs(t, err, ErrNotFound)
}

func containsInvoice(invoices []models.Invoice, id uuid.UUID) bool {
	for _, inv := range invoices {
		if inv.ID == id {
			return true
		}
	}
	return false
}
