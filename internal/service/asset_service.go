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

// AssetRepo is what AssetService needs from persistence
type AssetRepo interface {
	Transactor
	AssetRepository
	MovementRepository
}

// AssetService handles asset business logic
type AssetService struct {
	repo      AssetRepo
	ledger    *MovementLedger
	publisher EventPublisher
	logger    *zap.Logger
}

// NewAssetService creates a new asset service
func NewAssetService(repo AssetRepo, ledger *MovementLedger, publisher EventPublisher) *AssetService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &AssetService{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AssetInput carries asset attributes. A nil field is absent: create
// falls back to the default, update leaves the stored value.
type AssetInput struct {
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	Serial       *string          `json:"serial"`
	PurchaseDate *string          `json:"purchaseDate"`
	UnitPrice    *decimal.Decimal `json:"unitPrice"`
	Quantity     *int             `json:"quantity"`
	Supplier     *string          `json:"supplier"`
	Status       *string          `json:"status"`
	Location     *string          `json:"location"`
	ImageURL     *string          `json:"imageUrl"`
}

// assetRules holds the constraints every stored asset satisfies
type assetRules struct {
	Name      string          `json:"name" validate:"required"`
	Category  string          `json:"category" validate:"required,category"`
	Status    string          `json:"status" validate:"required,asset_status"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
}

// newAsset returns the defaults for every optional attribute
func newAsset() models.Asset {
	return models.Asset{
		Serial:    "",
		UnitPrice: decimal.Zero,
		Quantity:  0,
		Supplier:  "",
		Status:    models.AssetStatusInStock,
		Location:  "",
		ImageURL:  "",
	}
}

// applyTo copies the supplied fields onto a, trimming strings
func (in *AssetInput) applyTo(a *models.Asset) error {
	str := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	str(&a.Name, in.Name)
	str(&a.Category, in.Category)
	str(&a.Serial, in.Serial)
	str(&a.Supplier, in.Supplier)
	str(&a.Status, in.Status)
	str(&a.Location, in.Location)
	str(&a.ImageURL, in.ImageURL)

	if in.PurchaseDate != nil {
		d, err := parseDate("purchaseDate", *in.PurchaseDate)
		if err != nil {
			return err
		}
		a.PurchaseDate = d
	}
	if in.UnitPrice != nil {
		a.UnitPrice = *in.UnitPrice
	}
	if in.Quantity != nil {
		a.Quantity = *in.Quantity
	}
	return nil
}

func validateAsset(a *models.Asset) error {
	if err := validateStruct(&assetRules{
		Name:      a.Name,
		Category:  a.Category,
		Status:    a.Status,
		UnitPrice: a.UnitPrice,
		Quantity:  a.Quantity,
	}); err != nil {
		return err
	}
	return checkScale("unitPrice", a.UnitPrice)
}

// Get retrieves an asset by ID
func (s *AssetService) Get(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	ctx, span := util.StartSpan(ctx, "AssetService.Get")
	defer span.End()

	asset, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, translate("get asset", "asset", id.String(), err)
	}
	return asset, nil
}

// List lists assets matching the filter
func (s *AssetService) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	ctx, span := util.StartSpan(ctx, "AssetService.List")
	defer span.End()

	if filter.Category == "all" {
		filter.Category = ""
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	if filter.Sort == "" {
		filter.Sort = models.SortNewest
	}

	switch {
	case filter.Category != "" && !models.IsCategory(filter.Category):
		return nil, &ValidationError{Field: "category", Message: "must be one of " + strings.Join(models.Categories, ", ")}
	case filter.Status != "" && !models.IsAssetStatus(filter.Status):
		return nil, &ValidationError{Field: "status", Message: "must be one of " + strings.Join(models.AssetStatuses, ", ")}
	case !models.IsAssetSort(filter.Sort):
		return nil, &ValidationError{Field: "sort", Message: "must be one of " + strings.Join(models.AssetSorts, ", ")}
	}

	assets, err := s.repo.ListAssets(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, &DependencyError{Op: "list assets", Err: err}
	}
	return assets, nil
}

// Create validates and stores a new asset, logging an "added" movement
func (s *AssetService) Create(ctx context.Context, in *AssetInput) (*models.Asset, error) {
	ctx, span := util.StartSpan(ctx, "AssetService.Create")
	defer span.End()

	asset := newAsset()
	if err := in.applyTo(&asset); err != nil {
		return nil, err
	}
	if err := validateAsset(&asset); err != nil {
		return nil, err
	}
	asset.ID = uuid.New()

	movement := models.Movement{
		AssetID:   asset.ID,
		AssetName: asset.Name,
		Action:    models.ActionAdded,
		Type:      models.MovementTypeAdjustment,
		Quantity:  asset.Quantity,
		Remarks:   "Asset added",
	}

	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkDuplicate(ctx, &asset); err != nil {
			return err
		}
		if err := s.repo.CreateAsset(ctx, &asset); err != nil {
			return translate("create asset", "asset", asset.ID.String(), err)
		}
		return s.ledger.Record(ctx, &movement)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, translate("create asset", "asset", asset.ID.String(), err)
	}

	s.ledger.Committed(ctx, movement)
	s.logger.Info("Asset created",
		zap.String("asset_id", asset.ID.String()),
		zap.String("name", asset.Name),
		zap.Int("quantity", asset.Quantity))
	return &asset, nil
}

// Update applies the supplied fields and logs one movement: the quantity
// delta when quantity changed, otherwise an "edited" entry with quantity 0.
// A request that changes nothing is still logged.
func (s *AssetService) Update(ctx context.Context, id uuid.UUID, in *AssetInput) (*models.Asset, error) {
	ctx, span := util.StartSpan(ctx, "AssetService.Update", attribute.String("asset_id", id.String()))
	defer span.End()

	var (
		updated  models.Asset
		movement models.Movement
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetAssetForUpdate(ctx, id)
		if err != nil {
			return translate("get asset", "asset", id.String(), err)
		}

		updated = *current
		if err := in.applyTo(&updated); err != nil {
			return err
		}
		if err := validateAsset(&updated); err != nil {
			return err
		}
		if updated.Serial != current.Serial || updated.Name != current.Name || updated.Category != current.Category {
			if err := s.checkDuplicate(ctx, &updated); err != nil {
				return err
			}
		}

		movement = editMovement(current, &updated)
		if err := s.repo.UpdateAsset(ctx, &updated); err != nil {
			return translate("update asset", "asset", id.String(), err)
		}
		return s.ledger.Record(ctx, &movement)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, translate("update asset", "asset", id.String(), err)
	}

	s.ledger.Committed(ctx, movement)
	s.logger.Info("Asset updated",
		zap.String("asset_id", id.String()),
		zap.String("action", movement.Action),
		zap.Int("quantity", movement.Quantity))
	return &updated, nil
}

// Delete removes an asset after logging a "deleted" movement that
// captures the quantity held at deletion time
func (s *AssetService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "AssetService.Delete", attribute.String("asset_id", id.String()))
	defer span.End()

	var (
		deleted  *models.Asset
		movement models.Movement
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetAssetForUpdate(ctx, id)
		if err != nil {
			return translate("get asset", "asset", id.String(), err)
		}
		deleted = current

		movement = models.Movement{
			AssetID:   current.ID,
			AssetName: current.Name,
			Action:    models.ActionDeleted,
			Type:      models.MovementTypeAdjustment,
			Quantity:  current.Quantity,
			Remarks:   "Asset deleted",
		}
		if err := s.ledger.Record(ctx, &movement); err != nil {
			return err
		}
		return s.repo.DeleteAsset(ctx, id)
	})
	if err != nil {
		util.RecordError(span, err)
		return translate("delete asset", "asset", id.String(), err)
	}

	s.ledger.Committed(ctx, movement)

	event := &models.AssetDeletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeAssetDeleted),
		AssetID:   deleted.ID,
		Name:      deleted.Name,
		Quantity:  deleted.Quantity,
	}
	if err := s.publisher.PublishAssetDeleted(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish AssetDeleted event", zap.Error(err))
	}

	s.logger.Info("Asset deleted",
		zap.String("asset_id", id.String()),
		zap.Int("quantity", deleted.Quantity))
	return nil
}

// checkDuplicate rejects a serial already in use, or for serial-less
// assets an existing name and category pair
func (s *AssetService) checkDuplicate(ctx context.Context, a *models.Asset) error {
	dup, err := s.repo.FindDuplicateAsset(ctx, a.Serial, a.Name, a.Category, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &DependencyError{Op: "check duplicate asset", Err: err}
	}
	if a.Serial != "" {
		return &ConflictError{Message: fmt.Sprintf("an asset with serial %q already exists (%s)", a.Serial, dup.Name)}
	}
	return &ConflictError{Message: fmt.Sprintf("an asset named %q already exists in %s", a.Name, a.Category)}
}

// editMovement describes the change from prev to next
func editMovement(prev, next *models.Asset) models.Movement {
	m := models.Movement{
		AssetID:   next.ID,
		AssetName: next.Name,
		Type:      models.MovementTypeAdjustment,
	}

	delta := next.Quantity - prev.Quantity
	switch {
	case delta > 0:
		m.Action = models.ActionStockIncreased
		m.Quantity = delta
	case delta < 0:
		m.Action = models.ActionStockDecreased
		m.Quantity = -delta
	default:
		m.Action = models.ActionEdited
	}

	changed := changedFields(prev, next)
	if len(changed) == 0 {
		m.Remarks = "No fields changed"
	} else {
		m.Remarks = "Updated " + strings.Join(changed, ", ")
	}
	return m
}

func changedFields(prev, next *models.Asset) []string {
	var out []string
	add := func(name string, differs bool) {
		if differs {
			out = append(out, name)
		}
	}
	add("name", prev.Name != next.Name)
	add("category", prev.Category != next.Category)
	add("serial", prev.Serial != next.Serial)
	add("purchaseDate", !sameDate(prev.PurchaseDate, next.PurchaseDate))
	add("unitPrice", !prev.UnitPrice.Equal(next.UnitPrice))
	add("quantity", prev.Quantity != next.Quantity)
	add("supplier", prev.Supplier != next.Supplier)
	add("status", prev.Status != next.Status)
	add("location", prev.Location != next.Location)
	add("imageUrl", prev.ImageURL != next.ImageURL)
	return out
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
