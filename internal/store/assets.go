package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"asset-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var assetOrderBy = map[string]string{
	models.SortNewest:    "created_at DESC, id",
	models.SortOldest:    "created_at ASC, id",
	models.SortNameAsc:   "name ASC, id",
	models.SortNameDesc:  "name DESC, id",
	models.SortValueDesc: "(quantity * unit_price) DESC, id",
	models.SortQtyDesc:   "quantity DESC, id",
}

// GetAsset retrieves an asset by ID
func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := sqlx.GetContext(ctx, s.ext(ctx), &asset, "SELECT * FROM assets WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetAssetForUpdate retrieves an asset and row-locks it for the current transaction
func (s *Store) GetAssetForUpdate(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := sqlx.GetContext(ctx, s.ext(ctx), &asset, "SELECT * FROM assets WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetAssetsByIDs retrieves multiple assets by IDs
func (s *Store) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM assets WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var assets []models.Asset
	err = sqlx.SelectContext(ctx, s.ext(ctx), &assets, query, args...)
	return assets, err
}

// ListAssets lists assets matching the filter
func (s *Store) ListAssets(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	var (
		where []string
		args  []interface{}
	)

	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(name ILIKE $%[1]d OR category ILIKE $%[1]d OR serial ILIKE $%[1]d OR supplier ILIKE $%[1]d OR location ILIKE $%[1]d OR status ILIKE $%[1]d)", n))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT * FROM assets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	orderBy, ok := assetOrderBy[filter.Sort]
	if !ok {
		orderBy = assetOrderBy[models.SortNewest]
	}
	query += " ORDER BY " + orderBy

	assets := []models.Asset{}
	err := sqlx.SelectContext(ctx, s.ext(ctx), &assets, query, args...)
	return assets, err
}

// FindDuplicateAsset returns the asset that a new or edited asset would
// collide with: same serial when serial is set, else same name and category
// as any other asset, serialled or not.
func (s *Store) FindDuplicateAsset(ctx context.Context, serial, name, category string, exclude uuid.UUID) (*models.Asset, error) {
	var (
		asset models.Asset
		err   error
	)
	if serial != "" {
		err = sqlx.GetContext(ctx, s.ext(ctx), &asset,
			"SELECT * FROM assets WHERE serial = $1 AND id <> $2 LIMIT 1", serial, exclude)
	} else {
		err = sqlx.GetContext(ctx, s.ext(ctx), &asset,
			"SELECT * FROM assets WHERE name = $1 AND category = $2 AND id <> $3 LIMIT 1",
			name, category, exclude)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// CreateAsset inserts a new asset
func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, name, category, serial, purchase_date, unit_price, quantity,
			supplier, status, location, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), asset, query,
		asset.ID, asset.Name, asset.Category, asset.Serial, asset.PurchaseDate, asset.UnitPrice,
		asset.Quantity, asset.Supplier, asset.Status, asset.Location, asset.ImageURL)
	return translate(err)
}

// UpdateAsset overwrites every mutable column of an asset
func (s *Store) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	query := `
		UPDATE assets SET name = $1, category = $2, serial = $3, purchase_date = $4, unit_price = $5,
			quantity = $6, supplier = $7, status = $8, location = $9, image_url = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), &asset.UpdatedAt, query,
		asset.Name, asset.Category, asset.Serial, asset.PurchaseDate, asset.UnitPrice,
		asset.Quantity, asset.Supplier, asset.Status, asset.Location, asset.ImageURL, asset.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("asset %s: %w", asset.ID, ErrNotFound)
	}
	return translate(err)
}

// AdjustAssetQuantity atomically applies delta, refusing to go below zero
func (s *Store) AdjustAssetQuantity(ctx context.Context, id uuid.UUID, delta int) (*models.Asset, error) {
	var asset models.Asset
	err := sqlx.GetContext(ctx, s.ext(ctx), &asset, `
		UPDATE assets SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2 AND quantity + $1 >= 0
		RETURNING *`, delta, id)
	if err == nil {
		return &asset, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(err)
	}

	var exists bool
	if err := sqlx.GetContext(ctx, s.ext(ctx), &exists,
		"SELECT EXISTS(SELECT 1 FROM assets WHERE id = $1)", id); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil, fmt.Errorf("asset %s: %w", id, ErrInsufficientStock)
}

// DeleteAsset removes an asset
func (s *Store) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	res, err := s.ext(ctx).ExecContext(ctx, "DELETE FROM assets WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil
}
