// Package memstore is an in-memory stand-in for store.Store. It keeps the
// same sentinel errors, transaction semantics and ordering rules, and lets
// tests inject faults into individual operations.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type txKey struct{}

type fault struct {
	skip int
	err  error
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	assets    map[uuid.UUID]models.Asset
	invoices  map[uuid.UUID]models.Invoice
	movements []models.Movement
	logs      []models.VerificationLog
	counters  map[string]int64
	events    map[string]string

	seq    int64
	clock  time.Time
	faults map[string]*fault
}

// New returns an empty store
func New() *Store {
	return &Store{
		assets:   map[uuid.UUID]models.Asset{},
		invoices: map[uuid.UUID]models.Invoice{},
		counters: map[string]int64{},
		events:   map[string]string{},
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		faults:   map[string]*fault{},
	}
}

// InjectFault makes op fail with err after skip successful calls.
// op is a method name, or "Commit" for transaction commit.
func (s *Store) InjectFault(op string, skip int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{skip: skip, err: err}
}

// SetClock moves the logical clock used for timestamps
func (s *Store) SetClock(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = t
}

// check must be called with mu held
func (s *Store) check(op string) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(s.faults, op)
	return f.err
}

// now must be called with mu held
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type snapshot struct {
	assets    map[uuid.UUID]models.Asset
	invoices  map[uuid.UUID]models.Invoice
	movements []models.Movement
	logs      []models.VerificationLog
	counters  map[string]int64
	events    map[string]string
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		assets:    make(map[uuid.UUID]models.Asset, len(s.assets)),
		invoices:  make(map[uuid.UUID]models.Invoice, len(s.invoices)),
		movements: append([]models.Movement(nil), s.movements...),
		logs:      append([]models.VerificationLog(nil), s.logs...),
		counters:  make(map[string]int64, len(s.counters)),
		events:    make(map[string]string, len(s.events)),
	}
	for k, v := range s.assets {
		snap.assets[k] = v
	}
	for k, v := range s.invoices {
		snap.invoices[k] = v
	}
	for k, v := range s.counters {
		snap.counters[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = snap.assets
	s.invoices = snap.invoices
	s.movements = snap.movements
	s.logs = snap.logs
	s.counters = snap.counters
	s.events = snap.events
}

// InTx serializes transactions and restores a snapshot when fn fails
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}

	s.mu.Lock()
	err := s.check("Commit")
	s.mu.Unlock()
	if err != nil {
		return &store.CommitError{Err: err}
	}
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("Ping")
}

// GetAsset retrieves an asset by ID
func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetAsset"); err != nil {
		return nil, err
	}
	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, store.ErrNotFound)
	}
	return &a, nil
}

// GetAssetForUpdate behaves like GetAsset; transactions are already serialized
func (s *Store) GetAssetForUpdate(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return s.GetAsset(ctx, id)
}

// GetAssetsByIDs retrieves the assets that exist among ids
func (s *Store) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetAssetsByIDs"); err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]bool{}
	out := []models.Asset{}
	for _, id := range ids {
		if a, ok := s.assets[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, a)
		}
	}
	return out, nil
}

// ListAssets lists assets matching the filter
func (s *Store) ListAssets(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListAssets"); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []models.Asset{}
	for _, a := range s.assets {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if q != "" {
			hay := strings.ToLower(strings.Join([]string{a.Name, a.Category, a.Serial, a.Supplier, a.Location, a.Status}, " "))
			if !strings.Contains(hay, q) {
				continue
			}
		}
		out = append(out, a)
	}

	less := func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }
	switch filter.Sort {
	case models.SortOldest:
		less = func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) }
	case models.SortNameAsc:
		less = func(i, j int) bool { return out[i].Name < out[j].Name }
	case models.SortNameDesc:
		less = func(i, j int) bool { return out[i].Name > out[j].Name }
	case models.SortValueDesc:
		less = func(i, j int) bool { return out[i].Value().GreaterThan(out[j].Value()) }
	case models.SortQtyDesc:
		less = func(i, j int) bool { return out[i].Quantity > out[j].Quantity }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less(i, j) {
			return true
		}
		if less(j, i) {
			return false
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// FindDuplicateAsset mirrors the SQL duplicate rule
func (s *Store) FindDuplicateAsset(ctx context.Context, serial, name, category string, exclude uuid.UUID) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("FindDuplicateAsset"); err != nil {
		return nil, err
	}
	for _, a := range s.assets {
		if a.ID == exclude {
			continue
		}
		if serial != "" && a.Serial == serial {
			return &a, nil
		}
		if serial == "" && a.Name == name && a.Category == category {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

// CreateAsset inserts a new asset
func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateAsset"); err != nil {
		return err
	}
	if _, ok := s.assets[asset.ID]; ok {
		return fmt.Errorf("%w: assets_pkey", store.ErrDuplicate)
	}
	asset.CreatedAt = s.now()
	asset.UpdatedAt = asset.CreatedAt
	asset.UnitPrice = asset.UnitPrice.Round(models.MoneyScale)
	s.assets[asset.ID] = *asset
	return nil
}

// UpdateAsset overwrites every mutable column of an asset
func (s *Store) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("UpdateAsset"); err != nil {
		return err
	}
	prev, ok := s.assets[asset.ID]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset.ID, store.ErrNotFound)
	}
	if asset.Quantity < 0 {
		return fmt.Errorf("%w: assets_quantity_non_negative", store.ErrInsufficientStock)
	}
	asset.CreatedAt = prev.CreatedAt
	asset.UpdatedAt = s.now()
	asset.UnitPrice = asset.UnitPrice.Round(models.MoneyScale)
	s.assets[asset.ID] = *asset
	return nil
}

// AdjustAssetQuantity applies delta, refusing to go below zero
func (s *Store) AdjustAssetQuantity(ctx context.Context, id uuid.UUID, delta int) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("AdjustAssetQuantity"); err != nil {
		return nil, err
	}
	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, store.ErrNotFound)
	}
	if a.Quantity+delta < 0 {
		return nil, fmt.Errorf("asset %s: %w", id, store.ErrInsufficientStock)
	}
	a.Quantity += delta
	a.UpdatedAt = s.now()
	s.assets[id] = a
	return &a, nil
}

// DeleteAsset removes an asset
func (s *Store) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("DeleteAsset"); err != nil {
		return err
	}
	if _, ok := s.assets[id]; !ok {
		return fmt.Errorf("asset %s: %w", id, store.ErrNotFound)
	}
	delete(s.assets, id)
	return nil
}

// NextSequence increments and returns the counter for key
func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("NextSequence"); err != nil {
		return 0, err
	}
	s.counters[key]++
	return s.counters[key], nil
}

// CreateInvoice inserts an invoice together with its line items
func (s *Store) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateInvoice"); err != nil {
		return err
	}
	for _, inv := range s.invoices {
		if inv.InvoiceNumber == invoice.InvoiceNumber {
			return fmt.Errorf("%w: invoices_invoice_number_key", store.ErrDuplicate)
		}
	}
	invoice.CreatedAt = s.now()
	for i := range invoice.Items {
		invoice.Items[i].InvoiceID = invoice.ID
		invoice.Items[i].Position = i
	}
	stored := *invoice
	for _, d := range []*decimal.Decimal{
		&stored.Subtotal, &stored.Discount, &stored.VAT, &stored.VATAmount,
		&stored.GrandTotal, &stored.PaidAmount, &stored.ReturnedAmount,
	} {
		*d = d.Round(models.MoneyScale)
	}
	stored.Items = append([]models.InvoiceItem(nil), invoice.Items...)
	for i := range stored.Items {
		stored.Items[i].UnitPrice = stored.Items[i].UnitPrice.Round(models.MoneyScale)
		stored.Items[i].Total = stored.Items[i].Total.Round(models.MoneyScale)
	}
	s.invoices[invoice.ID] = stored
	return nil
}

// MarkInvoiceStockApplied flips the stock status
func (s *Store) MarkInvoiceStockApplied(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("MarkInvoiceStockApplied"); err != nil {
		return err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	inv.StockStatus = models.StockStatusApplied
	s.invoices[id] = inv
	return nil
}

// PutInvoice stores an invoice verbatim, bypassing the engine. Tests use it
// to seed states the engine never produces on its own.
func (s *Store) PutInvoice(invoice models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = s.now()
	}
	s.invoices[invoice.ID] = invoice
}

func (s *Store) copyInvoice(inv models.Invoice) *models.Invoice {
	inv.Items = append([]models.InvoiceItem{}, inv.Items...)
	return &inv
}

// GetInvoice retrieves an invoice with its items
func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetInvoice"); err != nil {
		return nil, err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	return s.copyInvoice(inv), nil
}

// GetInvoiceByNumber retrieves an invoice by exact invoice number
func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetInvoiceByNumber"); err != nil {
		return nil, err
	}
	for _, inv := range s.invoices {
		if inv.InvoiceNumber == number {
			return s.copyInvoice(inv), nil
		}
	}
	return nil, fmt.Errorf("invoice %q: %w", number, store.ErrNotFound)
}

func (s *Store) sortedInvoices(keep func(models.Invoice) bool, newestFirst bool) []models.Invoice {
	out := []models.Invoice{}
	for _, inv := range s.invoices {
		if keep(inv) {
			out = append(out, *s.copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].InvoiceNumber > out[j].InvoiceNumber == newestFirst
		}
		return out[i].CreatedAt.After(out[j].CreatedAt) == newestFirst
	})
	return out
}

// ListInvoices lists invoices newest first
func (s *Store) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListInvoices"); err != nil {
		return nil, err
	}
	return s.sortedInvoices(func(models.Invoice) bool { return true }, true), nil
}

// ListSuspectInvoices mirrors the SQL reconciliation query
func (s *Store) ListSuspectInvoices(ctx context.Context) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListSuspectInvoices"); err != nil {
		return nil, err
	}
	counts := map[uuid.UUID]int{}
	for _, m := range s.movements {
		if m.ReferenceInvoice != nil && (m.Action == models.ActionSold || m.Action == models.ActionPurchased) {
			counts[*m.ReferenceInvoice]++
		}
	}
	return s.sortedInvoices(func(inv models.Invoice) bool {
		return inv.StockStatus != models.StockStatusApplied || counts[inv.ID] != len(inv.Items)
	}, false), nil
}

// CreateMovement appends a ledger entry
func (s *Store) CreateMovement(ctx context.Context, m *models.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateMovement"); err != nil {
		return err
	}
	if m.Quantity < 0 {
		return fmt.Errorf("movement quantity %d is negative", m.Quantity)
	}
	s.seq++
	m.Seq = s.seq
	m.CreatedAt = s.now()
	s.movements = append(s.movements, *m)
	return nil
}

// ListMovements lists ledger entries newest first
func (s *Store) ListMovements(ctx context.Context, filter models.MovementFilter) ([]models.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListMovements"); err != nil {
		return nil, err
	}
	out := []models.Movement{}
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.Action != "" && m.Action != filter.Action {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// ListMovementsByInvoice lists the entries linked to an invoice in append order
func (s *Store) ListMovementsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListMovementsByInvoice"); err != nil {
		return nil, err
	}
	out := []models.Movement{}
	for _, m := range s.movements {
		if m.ReferenceInvoice != nil && *m.ReferenceInvoice == invoiceID {
			out = append(out, m)
		}
	}
	return out, nil
}

// CountMovements counts every ledger entry
func (s *Store) CountMovements(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements), s.check("CountMovements")
}

// CreateVerificationLog appends a lookup audit entry
func (s *Store) CreateVerificationLog(ctx context.Context, l *models.VerificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateVerificationLog"); err != nil {
		return err
	}
	l.VerifiedAt = s.now()
	s.logs = append(s.logs, *l)
	return nil
}

// ListVerificationLogs lists the most recent lookups
func (s *Store) ListVerificationLogs(ctx context.Context, limit int) ([]models.VerificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListVerificationLogs"); err != nil {
		return nil, err
	}
	out := []models.VerificationLog{}
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.logs[i])
	}
	return out, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventID]
	return ok, s.check("IsEventProcessed")
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("MarkEventProcessed"); err != nil {
		return err
	}
	s.events[eventID] = eventType
	return nil
}

// AssetTotals aggregates the asset table
func (s *Store) AssetTotals(ctx context.Context) (*models.AssetTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("AssetTotals"); err != nil {
		return nil, err
	}
	totals := &models.AssetTotals{StockValue: decimal.Zero}
	for _, a := range s.assets {
		totals.TotalAssets++
		totals.TotalStock += a.Quantity
		totals.StockValue = totals.StockValue.Add(a.Value())
		if a.Quantity > 0 && a.Quantity <= 2 {
			totals.LowStock++
		}
	}
	return totals, nil
}

// CategoryTotals aggregates assets per category present
func (s *Store) CategoryTotals(ctx context.Context) ([]models.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CategoryTotals"); err != nil {
		return nil, err
	}
	byCat := map[string]*models.CategoryTotal{}
	for _, a := range s.assets {
		t, ok := byCat[a.Category]
		if !ok {
			t = &models.CategoryTotal{Category: a.Category, Value: decimal.Zero}
			byCat[a.Category] = t
		}
		t.Assets++
		t.Stock += a.Quantity
		t.Value = t.Value.Add(a.Value())
	}
	out := []models.CategoryTotal{}
	for _, t := range byCat {
		out = append(out, *t)
	}
	return out, nil
}

// InvoiceMonthlyTotals sums grand totals per month, oldest first
func (s *Store) InvoiceMonthlyTotals(ctx context.Context) ([]models.MonthlyTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("InvoiceMonthlyTotals"); err != nil {
		return nil, err
	}
	byMonth := map[string]decimal.Decimal{}
	for _, inv := range s.invoices {
		month := inv.CreatedAt.UTC().Format("2006-01")
		byMonth[month] = byMonth[month].Add(inv.GrandTotal)
	}
	out := []models.MonthlyTotal{}
	for month, total := range byMonth {
		out = append(out, models.MonthlyTotal{Month: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// CountInvoices counts every invoice
func (s *Store) CountInvoices(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices), s.check("CountInvoices")
}
