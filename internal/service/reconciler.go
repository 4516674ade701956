package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconcileLockKey = "reconcile:sweep"

// Problems a reconcile check can report
const (
	ProblemStockPending     = "stock_pending"
	ProblemMovementCount    = "movement_count_mismatch"
	ProblemMovementMismatch = "movement_mismatch"
)

// ReconcileRepo is what Reconciler needs from persistence
type ReconcileRepo interface {
	InvoiceRepository
	MovementRepository
	EventRepository
}

// Locker runs fn while holding a cluster-wide lock. It reports false
// without calling fn when another holder has the lock.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// Finding describes one invoice whose stock effects are not provably applied
type Finding struct {
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Problem       string    `json:"problem"`
	Detail        string    `json:"detail"`
}

// Reconciler audits invoices against the movement ledger
type Reconciler struct {
	repo    ReconcileRepo
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewReconciler creates a new reconciler. locker may be nil for
// single-instance use.
func NewReconciler(repo ReconcileRepo, locker Locker, lockTTL time.Duration) *Reconciler {
	return &Reconciler{
		repo:    repo,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  util.GetLogger(),
	}
}

// CheckInvoice returns nil when the invoice is marked applied and owns
// exactly one sold/purchased movement per line item, matching in order
func (r *Reconciler) CheckInvoice(ctx context.Context, id uuid.UUID) (*Finding, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.CheckInvoice")
	defer span.End()

	invoice, err := r.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, translate("get invoice", "invoice", id.String(), err)
	}
	return r.check(ctx, invoice)
}

func (r *Reconciler) check(ctx context.Context, invoice *models.Invoice) (*Finding, error) {
	movements, err := r.repo.ListMovementsByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, &DependencyError{Op: "list invoice movements", Err: err}
	}

	finding := func(problem, format string, args ...interface{}) *Finding {
		return &Finding{
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			Problem:       problem,
			Detail:        fmt.Sprintf(format, args...),
		}
	}

	if invoice.StockStatus != models.StockStatusApplied {
		return finding(ProblemStockPending, "stock status is %q", invoice.StockStatus), nil
	}

	var stock []models.Movement
	for _, m := range movements {
		if m.Action == models.ActionSold || m.Action == models.ActionPurchased {
			stock = append(stock, m)
		}
	}
	if len(stock) != len(invoice.Items) {
		return finding(ProblemMovementCount, "%d line items, %d stock movements", len(invoice.Items), len(stock)), nil
	}

	want := models.ActionSold
	if invoice.Type == models.InvoiceTypePurchase {
		want = models.ActionPurchased
	}
	for i, item := range invoice.Items {
		m := stock[i]
		if m.AssetID != item.AssetID || m.Quantity != item.Quantity || m.Action != want {
			return finding(ProblemMovementMismatch,
				"line %d expects %s of %d x %s, ledger has %s of %d x %s",
				i, want, item.Quantity, item.AssetID, m.Action, m.Quantity, m.AssetID), nil
		}
	}
	return nil, nil
}

// Sweep checks every suspect invoice and publishes the count as a gauge
func (r *Reconciler) Sweep(ctx context.Context) ([]Finding, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Sweep")
	defer span.End()

	suspects, err := r.repo.ListSuspectInvoices(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, &DependencyError{Op: "list suspect invoices", Err: err}
	}

	findings := []Finding{}
	for i := range suspects {
		f, err := r.check(ctx, &suspects[i])
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		r.logger.Warn("Ledger inconsistency",
			zap.String("invoice_number", f.InvoiceNumber),
			zap.String("problem", f.Problem),
			zap.String("detail", f.Detail))
		findings = append(findings, *f)
	}

	util.LedgerInconsistencies.Set(float64(len(findings)))
	r.logger.Info("Reconcile sweep finished",
		zap.Int("suspects", len(suspects)),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// SweepExclusive runs Sweep under the cluster lock. ran is false when
// another instance holds it.
func (r *Reconciler) SweepExclusive(ctx context.Context) (findings []Finding, ran bool, err error) {
	if r.locker == nil {
		findings, err = r.Sweep(ctx)
		return findings, true, err
	}

	ran, err = r.locker.WithLock(ctx, reconcileLockKey, r.lockTTL, func(ctx context.Context) error {
		var serr error
		findings, serr = r.Sweep(ctx)
		return serr
	})
	if err != nil {
		return nil, ran, err
	}
	if !ran {
		r.logger.Debug("Reconcile sweep skipped, lock held elsewhere")
	}
	return findings, ran, nil
}

// HandleInvoiceCreated audits a freshly committed invoice once per event
func (r *Reconciler) HandleInvoiceCreated(ctx context.Context, event *models.InvoiceCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleInvoiceCreated")
	defer span.End()

	processed, err := r.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		r.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	finding, err := r.CheckInvoice(ctx, event.InvoiceID)
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		// the row is written before the event; a missing invoice is itself a finding
		r.logger.Error("Invoice from event not found",
			zap.String("invoice_id", event.InvoiceID.String()),
			zap.String("invoice_number", event.InvoiceNumber))
	case err != nil:
		return fmt.Errorf("failed to check invoice: %w", err)
	case finding != nil:
		r.logger.Warn("Ledger inconsistency",
			zap.String("invoice_number", finding.InvoiceNumber),
			zap.String("problem", finding.Problem),
			zap.String("detail", finding.Detail))
	}

	if err := r.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		r.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
