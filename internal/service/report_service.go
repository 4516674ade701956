package service

import (
	"context"

	"asset-service/internal/models"
	"asset-service/internal/util"

	"github.com/shopspring/decimal"
)

// ReportRepo is what ReportService needs from persistence
type ReportRepo interface {
	ReportRepository
	InvoiceRepository
	MovementRepository
}

// Summary is the dashboard overview
type Summary struct {
	TotalAssets       int                    `json:"totalAssets"`
	TotalStock        int                    `json:"totalStock"`
	StockValue        decimal.Decimal        `json:"stockValue"`
	LowStock          int                    `json:"lowStock"`
	TotalInvoices     int                    `json:"totalInvoices"`
	TotalMovements    int                    `json:"totalMovements"`
	MonthlyTotals     []models.MonthlyTotal  `json:"monthlyTotals"`
	CategoryBreakdown []models.CategoryTotal `json:"categoryBreakdown"`
}

type ReportService struct {
	repo ReportRepo
}

func NewReportService(repo ReportRepo) *ReportService {
	return &ReportService{repo: repo}
}

// Summary aggregates assets, invoices and the ledger
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Summary")
	defer span.End()

	totals, err := s.repo.AssetTotals(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "asset totals", Err: err}
	}
	byCategory, err := s.repo.CategoryTotals(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "category totals", Err: err}
	}
	monthly, err := s.repo.InvoiceMonthlyTotals(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "monthly invoice totals", Err: err}
	}
	invoices, err := s.repo.CountInvoices(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "count invoices", Err: err}
	}
	movements, err := s.repo.CountMovements(ctx)
	if err != nil {
		return nil, &DependencyError{Op: "count movements", Err: err}
	}

	return &Summary{
		TotalAssets:       totals.TotalAssets,
		TotalStock:        totals.TotalStock,
		StockValue:        totals.StockValue,
		LowStock:          totals.LowStock,
		TotalInvoices:     invoices,
		TotalMovements:    movements,
		MonthlyTotals:     monthly,
		CategoryBreakdown: categoryBreakdown(byCategory),
	}, nil
}

// categoryBreakdown lists every category in enum order, zero-filled
func categoryBreakdown(totals []models.CategoryTotal) []models.CategoryTotal {
	byName := make(map[string]models.CategoryTotal, len(totals))
	for _, t := range totals {
		byName[t.Category] = t
	}

	out := make([]models.CategoryTotal, len(models.Categories))
	for i, c := range models.Categories {
		t, ok := byName[c]
		if !ok {
			t = models.CategoryTotal{Category: c, Value: decimal.Zero}
		}
		out[i] = t
	}
	return out
}
