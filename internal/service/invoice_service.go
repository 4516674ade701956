package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/store"
	"asset-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InvoiceRepo is what InvoiceService needs from persistence
type InvoiceRepo interface {
	Transactor
	SequenceRepository
	AssetRepository
	MovementRepository
	InvoiceRepository
}

// InvoiceService creates invoices and applies their stock effects
type InvoiceService struct {
	repo           InvoiceRepo
	allocator      *SequenceAllocator
	ledger         *MovementLedger
	publisher      EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewInvoiceService creates a new invoice service. publisher and
// idempotency may be nil.
func NewInvoiceService(
	repo InvoiceRepo,
	allocator *SequenceAllocator,
	ledger *MovementLedger,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *InvoiceService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &InvoiceService{
		repo:           repo,
		allocator:      allocator,
		ledger:         ledger,
		publisher:      publisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	Type           string               `json:"type" validate:"required,invoice_type"`
	Buyer          string               `json:"buyer"`
	Seller         string               `json:"seller"`
	Items          []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount       decimal.Decimal      `json:"discount" validate:"gte=0"`
	VAT            decimal.Decimal      `json:"vat" validate:"gte=0"`
	PaidAmount     decimal.Decimal      `json:"paidAmount" validate:"gte=0"`
	PaymentMethod  string               `json:"paymentMethod" validate:"required,payment_method"`
	Notes          string               `json:"notes"`
	IdempotencyKey string               `json:"-"`
}

// InvoiceItemRequest represents a line item in an invoice request
type InvoiceItemRequest struct {
	AssetID   uuid.UUID       `json:"assetId" validate:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gte=0"`
}

// Totals are the amounts fixed on an invoice at creation
type Totals struct {
	Subtotal       decimal.Decimal
	VATAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
	ReturnedAmount decimal.Decimal
}

// CalculateTotals applies subtotal = Σ(qty × price), vatAmount =
// subtotal × vat / 100, grandTotal = subtotal − discount + vatAmount and
// returnedAmount = paid − grandTotal. Line totals are written back to items.
// Each amount is rounded to models.MoneyScale once, before it feeds the next,
// so the stored figures satisfy the same sums.
func CalculateTotals(items []models.InvoiceItem, discount, vat, paid decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		items[i].Total = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))).Round(models.MoneyScale)
		subtotal = subtotal.Add(items[i].Total)
	}
	vatAmount := subtotal.Mul(vat).Shift(-2).Round(models.MoneyScale)
	grand := subtotal.Sub(discount).Add(vatAmount).Round(models.MoneyScale)
	return Totals{
		Subtotal:       subtotal,
		VATAmount:      vatAmount,
		GrandTotal:     grand,
		ReturnedAmount: paid.Sub(grand).Round(models.MoneyScale),
	}
}

// Create runs Validating → Numbering → Persisting → StockApplying →
// Committed. The last three steps share one transaction. The bool reports
// whether the invoice was replayed for a repeated Idempotency-Key.
func (s *InvoiceService) Create(ctx context.Context, req *CreateInvoiceRequest) (*models.Invoice, bool, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.Create")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InvoiceCreateLatency.Observe(time.Since(start).Seconds())
	}()

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" || s.idempotency == nil {
		invoice, err := s.create(ctx, req)
		util.RecordError(span, err)
		return invoice, false, err
	}

	claimed, existing, err := s.idempotency.ClaimIdempotencyKey(ctx, key, s.idempotencyTTL)
	if err != nil {
		return nil, false, &DependencyError{Op: "claim idempotency key", Err: err}
	}
	if !claimed {
		id, perr := uuid.Parse(existing)
		if perr != nil {
			return nil, false, &ConflictError{Message: "a request with this Idempotency-Key is still in progress"}
		}
		s.logger.Info("Duplicate invoice request detected",
			zap.String("idempotency_key", key),
			zap.String("invoice_id", existing))
		invoice, err := s.Get(ctx, id)
		return invoice, true, err
	}

	invoice, err := s.create(ctx, req)
	if err != nil {
		util.RecordError(span, err)
		// an unknown commit outcome keeps the key so a retry cannot double-apply
		var partial *PartialApplicationError
		if !errors.As(err, &partial) {
			if rerr := s.idempotency.ReleaseIdempotencyKey(ctx, key); rerr != nil {
				s.logger.Error("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(rerr))
			}
		}
		return nil, false, err
	}

	if err := s.idempotency.SetIdempotencyKey(ctx, key, invoice.ID.String(), s.idempotencyTTL); err != nil {
		s.logger.Error("Failed to store idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
	return invoice, false, nil
}

func (s *InvoiceService) create(ctx context.Context, req *CreateInvoiceRequest) (*models.Invoice, error) {
	// Validating
	invoice, err := s.validate(ctx, req)
	if err != nil {
		util.InvoiceFailuresTotal.WithLabelValues(StepValidating).Inc()
		return nil, err
	}

	var movements []models.Movement
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		number, err := s.allocator.Next(ctx)
		if err != nil {
			return &InvoiceStepError{Step: StepNumbering, Err: &DependencyError{Op: "allocate invoice number", Err: err}}
		}
		invoice.InvoiceNumber = number

		if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
			return &InvoiceStepError{Step: StepPersisting, Err: translate("persist invoice", "invoice", number, err)}
		}

		movements, err = s.applyStock(ctx, invoice)
		if err != nil {
			return &InvoiceStepError{Step: StepStockApplying, Err: err}
		}

		if err := s.repo.MarkInvoiceStockApplied(ctx, invoice.ID); err != nil {
			return &InvoiceStepError{Step: StepStockApplying, Err: translate("mark stock applied", "invoice", number, err)}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(invoice, err)
	}

	invoice.StockStatus = models.StockStatusApplied
	util.InvoicesCreatedTotal.WithLabelValues(invoice.Type).Inc()
	s.logger.Info("Invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("type", invoice.Type),
		zap.String("grand_total", invoice.GrandTotal.String()))

	s.ledger.Committed(ctx, movements...)
	s.publishInvoiceCreated(ctx, invoice)
	return invoice, nil
}

// fail classifies a transaction error. Statement failures rolled back
// everything; a failed COMMIT leaves the outcome unknown.
func (s *InvoiceService) fail(invoice *models.Invoice, err error) error {
	var commitErr *store.CommitError
	if errors.As(err, &commitErr) {
		util.InvoiceFailuresTotal.WithLabelValues("commit").Inc()
		s.logger.Error("Invoice commit outcome unknown",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
		return &PartialApplicationError{
			InvoiceNumber: invoice.InvoiceNumber,
			Err:           &DependencyError{Op: "commit invoice", Err: commitErr.Err},
		}
	}

	var stepErr *InvoiceStepError
	if !errors.As(err, &stepErr) {
		stepErr = &InvoiceStepError{Step: StepNumbering, Err: &DependencyError{Op: "begin invoice transaction", Err: err}}
	}
	util.InvoiceFailuresTotal.WithLabelValues(stepErr.Step).Inc()
	s.logger.Warn("Invoice creation failed",
		zap.String("step", stepErr.Step),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Error(stepErr.Err))
	return stepErr
}

// validate checks the request against live asset state and builds the
// invoice with its totals. Nothing is written.
func (s *InvoiceService) validate(ctx context.Context, req *CreateInvoiceRequest) (*models.Invoice, error) {
	if req.Type == "" {
		req.Type = models.InvoiceTypeSale
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	for i, item := range req.Items {
		if err := checkScale(fmt.Sprintf("items[%d].unitPrice", i), item.UnitPrice); err != nil {
			return nil, err
		}
	}
	if err := checkScale("discount", req.Discount); err != nil {
		return nil, err
	}
	if err := checkScale("vat", req.VAT); err != nil {
		return nil, err
	}
	if err := checkScale("paidAmount", req.PaidAmount); err != nil {
		return nil, err
	}

	buyer := strings.TrimSpace(req.Buyer)
	seller := strings.TrimSpace(req.Seller)
	switch req.Type {
	case models.InvoiceTypeSale:
		if buyer == "" {
			return nil, &ValidationError{Field: "buyer", Message: "is required for a sale"}
		}
		seller = ""
	case models.InvoiceTypePurchase:
		if seller == "" {
			return nil, &ValidationError{Field: "seller", Message: "is required for a purchase"}
		}
		buyer = ""
	}

	ids := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.AssetID
	}
	found, err := s.repo.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, &DependencyError{Op: "load invoice assets", Err: err}
	}
	assets := make(map[uuid.UUID]*models.Asset, len(found))
	for i := range found {
		assets[found[i].ID] = &found[i]
	}

	requested := map[uuid.UUID]int{}
	items := make([]models.InvoiceItem, len(req.Items))
	for i, item := range req.Items {
		asset, ok := assets[item.AssetID]
		if !ok {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].assetId", i),
				Message: fmt.Sprintf("asset %s does not exist", item.AssetID),
			}
		}

		// lines naming the same asset draw on the same stock
		requested[item.AssetID] += item.Quantity
		if req.Type == models.InvoiceTypeSale && requested[item.AssetID] > asset.Quantity {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("only %d of %q in stock, %d requested", asset.Quantity, asset.Name, requested[item.AssetID]),
			}
		}

		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = asset.Name
		}
		items[i] = models.InvoiceItem{
			ID:        uuid.New(),
			AssetID:   item.AssetID,
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	totals := CalculateTotals(items, req.Discount, req.VAT, req.PaidAmount)
	return &models.Invoice{
		ID:             uuid.New(),
		Type:           req.Type,
		Buyer:          buyer,
		Seller:         seller,
		Subtotal:       totals.Subtotal,
		Discount:       req.Discount,
		VAT:            req.VAT,
		VATAmount:      totals.VATAmount,
		GrandTotal:     totals.GrandTotal,
		PaidAmount:     req.PaidAmount,
		ReturnedAmount: totals.ReturnedAmount,
		PaymentMethod:  req.PaymentMethod,
		Notes:          strings.TrimSpace(req.Notes),
		StockStatus:    models.StockStatusPending,
		Items:          items,
	}, nil
}

// applyStock adjusts each line's asset and appends its movement, in item order
func (s *InvoiceService) applyStock(ctx context.Context, invoice *models.Invoice) ([]models.Movement, error) {
	movements := make([]models.Movement, 0, len(invoice.Items))
	party := invoice.PartyName()

	for i, item := range invoice.Items {
		delta, action, remarks := item.Quantity, models.ActionPurchased, "Purchased from "+party
		if invoice.Type == models.InvoiceTypeSale {
			delta, action, remarks = -item.Quantity, models.ActionSold, "Sold to "+party
		}

		asset, err := s.repo.AdjustAssetQuantity(ctx, item.AssetID, delta)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrInsufficientStock):
				return nil, &ValidationError{
					Field:   fmt.Sprintf("items[%d].quantity", i),
					Message: fmt.Sprintf("insufficient stock for %q", item.Name),
				}
			case errors.Is(err, store.ErrNotFound):
				return nil, &ValidationError{
					Field:   fmt.Sprintf("items[%d].assetId", i),
					Message: fmt.Sprintf("asset %s does not exist", item.AssetID),
				}
			}
			return nil, &DependencyError{Op: "adjust asset quantity", Err: err}
		}

		invoiceID := invoice.ID
		m := models.Movement{
			AssetID:          asset.ID,
			AssetName:        asset.Name,
			Action:           action,
			Type:             invoice.Type,
			Quantity:         item.Quantity,
			ReferenceInvoice: &invoiceID,
			InvoiceNumber:    invoice.InvoiceNumber,
			PartyName:        party,
			Remarks:          fmt.Sprintf("%s (%s)", remarks, invoice.InvoiceNumber),
		}
		if err := s.ledger.Record(ctx, &m); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *InvoiceService) publishInvoiceCreated(ctx context.Context, invoice *models.Invoice) {
	items := make([]models.InvoiceItemData, len(invoice.Items))
	for i, item := range invoice.Items {
		items[i] = models.InvoiceItemData{
			AssetID:   item.AssetID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	event := &models.InvoiceCreatedEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypeInvoiceCreated),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Type:          invoice.Type,
		PartyName:     invoice.PartyName(),
		GrandTotal:    invoice.GrandTotal,
		Items:         items,
	}
	if err := s.publisher.PublishInvoiceCreated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish InvoiceCreated event",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
	}
}

// Get retrieves an invoice by ID
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.Get", attribute.String("invoice_id", id.String()))
	defer span.End()

	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, translate("get invoice", "invoice", id.String(), err)
	}
	return invoice, nil
}

// List lists invoices newest first
func (s *InvoiceService) List(ctx context.Context) ([]models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.List")
	defer span.End()

	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "list invoices", Err: err}
	}
	return invoices, nil
}
