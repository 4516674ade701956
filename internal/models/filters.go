package models

import "github.com/shopspring/decimal"

// Asset list sort keys
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
	SortValueDesc = "value_desc"
	SortQtyDesc   = "qty_desc"
)

var AssetSorts = []string{SortNewest, SortOldest, SortNameAsc, SortNameDesc, SortValueDesc, SortQtyDesc}

// IsAssetSort reports whether s is a known sort key
func IsAssetSort(s string) bool { return contains(AssetSorts, s) }

// AssetFilter narrows an asset listing
type AssetFilter struct {
	Search   string
	Category string
	Status   string
	Sort     string
}

// MovementFilter narrows a ledger listing
type MovementFilter struct {
	Type   string
	Action string
	Limit  int
}

// AssetTotals aggregates the asset table
type AssetTotals struct {
	TotalAssets int             `db:"total_assets" json:"totalAssets"`
	TotalStock  int             `db:"total_stock" json:"totalStock"`
	StockValue  decimal.Decimal `db:"stock_value" json:"stockValue"`
	LowStock    int             `db:"low_stock" json:"lowStock"`
}

// CategoryTotal aggregates assets of one category
type CategoryTotal struct {
	Category string          `db:"category" json:"category"`
	Assets   int             `db:"assets" json:"assets"`
	Stock    int             `db:"stock" json:"stock"`
	Value    decimal.Decimal `db:"value" json:"value"`
}

// MonthlyTotal sums invoice grand totals for a YYYY-MM month
type MonthlyTotal struct {
	Month string          `db:"month" json:"month"`
	Total decimal.Decimal `db:"total" json:"total"`
}
