package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotals(t *testing.T) {
	items := []models.InvoiceItem{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.35")},
	}

	totals := CalculateTotals(items, decimal.RequireFromString("5"), decimal.RequireFromString("7.5"), decimal.RequireFromString("50"))

	assertDecimal(t, "39.98", items[0].Total)
	assertDecimal(t, "1.05", items[1].Total)
	assertDecimal(t, "41.03", totals.Subtotal)
	assertDecimal(t, "3.0773", totals.VATAmount)
	assertDecimal(t, "39.1073", totals.GrandTotal)
	assertDecimal(t, "10.8927", totals.ReturnedAmount)
	assert.True(t, totals.GrandTotal.Equal(totals.Subtotal.Sub(decimal.RequireFromString("5")).Add(totals.VATAmount)))
}

func TestCreateInvoice_StoredTotalsMatchResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Cable", models.CategoryElectronics, "0.99", 3)

	req := saleRequest("Acme", line(a.ID, 1, "0.99"))
	req.VAT = decimal.RequireFromString("7.5")
	req.PaidAmount = decimal.NewFromInt(2)

	created, _, err := env.invoices.Create(ctx, req)
	require.NoError(t, err)
	assertDecimal(t, "0.0743", created.VATAmount)
	assertDecimal(t, "1.0643", created.GrandTotal)
	assertDecimal(t, "0.9357", created.ReturnedAmount)

	got, err := env.invoices.Get(ctx, created.ID)
	require.NoError(t, err)
	assertDecimal(t, created.Subtotal.String(), got.Subtotal)
	assertDecimal(t, created.VATAmount.String(), got.VATAmount)
	assertDecimal(t, created.GrandTotal.String(), got.GrandTotal)
	assertDecimal(t, created.ReturnedAmount.String(), got.ReturnedAmount)
	assertDecimal(t, created.Items[0].Total.String(), got.Items[0].Total)
}

func TestCalculateTotals_ReturnedMayBeNegative(t *testing.T) {
	items := []models.InvoiceItem{{Quantity: 1, UnitPrice: decimal.NewFromInt(100)}}
	totals := CalculateTotals(items, decimal.Zero, decimal.Zero, decimal.NewFromInt(40))
	assertDecimal(t, "-60", totals.ReturnedAmount)
}

func TestCreateInvoice_Purchase(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 1)
	b := env.createAsset(t, "Desk", models.CategoryFurniture, "900", 0)

	req := purchaseRequest("Wood & Co", line(a.ID, 4, "450"), line(b.ID, 2, "850"))
	req.Discount = decimal.NewFromInt(100)
	req.PaidAmount = decimal.NewFromInt(3500)
	req.Buyer = "ignored"

	inv, _, err := env.invoices.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Wood & Co", inv.Seller)
	assert.Empty(t, inv.Buyer)
	assertDecimal(t, "3500", inv.Subtotal)
	assertDecimal(t, "3400", inv.GrandTotal)
	assertDecimal(t, "100", inv.ReturnedAmount)
	assert.Equal(t, "Chair", inv.Items[0].Name)

	assert.Equal(t, 5, env.assetQty(t, a.ID))
	assert.Equal(t, 2, env.assetQty(t, b.ID))

	byInvoice, err := env.ledger.ListByInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, byInvoice, 2)
	assert.Equal(t, a.ID, byInvoice[0].AssetID, "movements follow item order")
	assert.Equal(t, b.ID, byInvoice[1].AssetID)
	for _, m := range byInvoice {
		assert.Equal(t, models.ActionPurchased, m.Action)
		assert.Equal(t, models.MovementTypePurchase, m.Type)
		assert.Equal(t, "Wood & Co", m.PartyName)
	}

	require.Len(t, env.publisher.invoices, 1)
	assert.Equal(t, inv.InvoiceNumber, env.publisher.invoices[0].InvoiceNumber)
}

func TestCreateInvoice_Validation(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	tests := []struct {
		name  string
		req   *CreateInvoiceRequest
		field string
	}{
		{"no items", saleRequest("Acme"), "items"},
		{"sale without buyer", saleRequest("  ", line(a.ID, 1, "1")), "buyer"},
		{"purchase without seller", purchaseRequest("", line(a.ID, 1, "1")), "seller"},
		{"zero quantity", saleRequest("Acme", line(a.ID, 0, "1")), "items[0].quantity"},
		{"negative price", saleRequest("Acme", line(a.ID, 1, "-1")), "items[0].unitPrice"},
		{"price below stored scale", saleRequest("Acme", line(a.ID, 1, "0.00001")), "items[0].unitPrice"},
		{"discount below stored scale", &CreateInvoiceRequest{Buyer: "x", Discount: decimal.RequireFromString("1.23456"), Items: []InvoiceItemRequest{line(a.ID, 1, "1")}}, "discount"},
		{"unknown asset", saleRequest("Acme", line(uuid.New(), 1, "1")), "items[0].assetId"},
		{"missing asset", saleRequest("Acme", InvoiceItemRequest{Quantity: 1}), "items[0].assetId"},
		{"split oversell", saleRequest("Acme", line(a.ID, 3, "1"), line(a.ID, 3, "1")), "items[1].quantity"},
		{"unknown type", &CreateInvoiceRequest{Type: "gift", Buyer: "x", Items: []InvoiceItemRequest{line(a.ID, 1, "1")}}, "type"},
		{"unknown payment", &CreateInvoiceRequest{Buyer: "x", PaymentMethod: "barter", Items: []InvoiceItemRequest{line(a.ID, 1, "1")}}, "paymentMethod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.invoices.Create(context.Background(), tt.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.Equal(t, 5, env.assetQty(t, a.ID))
	invoices, err := env.invoices.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestCreateInvoice_DefaultsTypeAndPayment(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	inv, _, err := env.invoices.Create(context.Background(), &CreateInvoiceRequest{
		Buyer: "Walk-in",
		Items: []InvoiceItemRequest{{AssetID: a.ID, Name: "Chair (blue)", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypeSale, inv.Type)
	assert.Equal(t, models.PaymentMethodCash, inv.PaymentMethod)
	assert.Equal(t, "Chair (blue)", inv.Items[0].Name)
}

func TestCreateInvoice_ImmuneToPriceEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	inv, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 2, "480")))
	require.NoError(t, err)

	_, err = env.assets.Update(ctx, a.ID, &AssetInput{UnitPrice: decPtr("9999")})
	require.NoError(t, err)

	got, err := env.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assertDecimal(t, "960", got.GrandTotal)
	assertDecimal(t, "480", got.Items[0].UnitPrice)
	assertDecimal(t, "960", got.Items[0].Total)
}

func TestCreateInvoice_ConcurrentNumbersAreUnique(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Cable", models.CategoryElectronics, "5", 0)

	const n = 25
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, _, err := env.invoices.Create(context.Background(),
				purchaseRequest(fmt.Sprintf("Supplier %d", i), line(a.ID, 1, "5")))
			errs[i] = err
			if err == nil {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate %s", numbers[i])
		seen[numbers[i]] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, env.assetQty(t, a.ID))
}

func TestCreateInvoice_StockFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	b := env.createAsset(t, "Desk", models.CategoryFurniture, "900", 5)
	before := len(env.movements(t))

	// the second line's movement append fails
	env.repo.InjectFault("CreateMovement", 1, errors.New("ledger offline"))

	_, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 1, "500"), line(b.ID, 1, "900")))
	var stepErr *InvoiceStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepStockApplying, stepErr.Step)
	var de *DependencyError
	assert.ErrorAs(t, err, &de)

	assert.Equal(t, 5, env.assetQty(t, a.ID))
	assert.Equal(t, 5, env.assetQty(t, b.ID))
	assert.Len(t, env.movements(t), before)
	invoices, err := env.invoices.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.Empty(t, env.publisher.invoices)

	// the failed attempt did not burn a number
	inv, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 1, "500")))
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0001", inv.InvoiceNumber)
}

func TestCreateInvoice_NumberingFailure(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	env.repo.InjectFault("NextSequence", 0, errors.New("connection refused"))
	_, _, err := env.invoices.Create(context.Background(), saleRequest("Acme", line(a.ID, 1, "500")))

	var stepErr *InvoiceStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepNumbering, stepErr.Step)
	assert.Equal(t, 5, env.assetQty(t, a.ID))
}

func TestCreateInvoice_PersistFailure(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	env.repo.InjectFault("CreateInvoice", 0, errors.New("disk full"))
	_, _, err := env.invoices.Create(context.Background(), saleRequest("Acme", line(a.ID, 1, "500")))

	var stepErr *InvoiceStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepPersisting, stepErr.Step)
	assert.Equal(t, 5, env.assetQty(t, a.ID))
}

func TestCreateInvoice_CommitFailureIsPartial(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	env.repo.InjectFault("Commit", 0, errors.New("connection reset"))
	_, _, err := env.invoices.Create(context.Background(), saleRequest("Acme", line(a.ID, 1, "500")))

	var partial *PartialApplicationError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "INV-2025-0001", partial.InvoiceNumber)
	assert.Empty(t, env.publisher.invoices)
}

func TestCreateInvoice_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)

	req := saleRequest("Acme", line(a.ID, 2, "500"))
	req.IdempotencyKey = "req-1"
	first, replayed, err := env.invoices.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := env.invoices.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, env.assetQty(t, a.ID))
}

func TestCreateInvoice_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 1)

	req := saleRequest("Acme", line(a.ID, 2, "500"))
	req.IdempotencyKey = "req-2"
	_, _, err := env.invoices.Create(ctx, req)
	require.Error(t, err)

	_, err = env.assets.Update(ctx, a.ID, &AssetInput{Quantity: intPtr(2)})
	require.NoError(t, err)

	inv, replayed, err := env.invoices.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEmpty(t, inv.InvoiceNumber)
}

func TestCreateInvoice_IdempotencyKeyInFlight(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	env.idempotency.keys["busy"] = ""

	req := saleRequest("Acme", line(a.ID, 1, "500"))
	req.IdempotencyKey = "busy"
	_, _, err := env.invoices.Create(context.Background(), req)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestVerify_Found(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	inv, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 1, "500")))
	require.NoError(t, err)

	got, err := env.verification.Verify(ctx, inv.InvoiceNumber, Caller{})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	// prefix of a real number is not a match
	_, err = env.verification.Verify(ctx, "INV-2025-000", Caller{})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	// surrounding whitespace is ignored for the lookup but kept in the log
	padded := " " + inv.InvoiceNumber + "\t"
	got, err = env.verification.Verify(ctx, padded, Caller{})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	logs, err := env.verification.RecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, padded, logs[0].InvoiceNumber)
	assert.True(t, logs[0].Found)
	assert.Equal(t, "INV-2025-000", logs[1].InvoiceNumber)
	assert.True(t, logs[2].Found)
	assert.Equal(t, "unknown", logs[2].IP)
	assert.Equal(t, "unknown", logs[1].UserAgent)
}

func TestVerify_AuditFailureDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAsset(t, "Chair", models.CategoryFurniture, "500", 5)
	inv, _, err := env.invoices.Create(ctx, saleRequest("Acme", line(a.ID, 1, "500")))
	require.NoError(t, err)

	env.repo.InjectFault("CreateVerificationLog", 0, errors.New("audit store down"))
	got, err := env.verification.Verify(ctx, inv.InvoiceNumber, Caller{IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
}
