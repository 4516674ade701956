package service

import (
	"context"
	"errors"
	"strings"

	"asset-service/internal/models"
	"asset-service/internal/store"
	"asset-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxVerificationLogs caps the audit listing
const MaxVerificationLogs = 100

const unknownCaller = "unknown"

// VerificationRepo is what VerificationService needs from persistence
type VerificationRepo interface {
	InvoiceRepository
	VerificationRepository
}

// Caller identifies who asked for a public lookup
type Caller struct {
	IP        string
	UserAgent string
}

// VerificationService answers public invoice lookups and audits each one
type VerificationService struct {
	repo   VerificationRepo
	logger *zap.Logger
}

// NewVerificationService creates a new verification service
func NewVerificationService(repo VerificationRepo) *VerificationService {
	return &VerificationService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// Verify looks up an invoice by exact number. Every call appends a
// VerificationLog, hit or miss; a failed append is logged and ignored.
func (s *VerificationService) Verify(ctx context.Context, invoiceNumber string, caller Caller) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "VerificationService.Verify")
	defer span.End()

	invoice, err := s.repo.GetInvoiceByNumber(ctx, strings.TrimSpace(invoiceNumber))
	result := "found"
	switch {
	case errors.Is(err, store.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	util.VerificationLookupsTotal.WithLabelValues(result).Inc()

	s.audit(ctx, invoiceNumber, caller, err == nil)

	if err != nil {
		util.RecordError(span, err)
		return nil, translate("verify invoice", "invoice", invoiceNumber, err)
	}
	return invoice, nil
}

func (s *VerificationService) audit(ctx context.Context, invoiceNumber string, caller Caller, found bool) {
	entry := &models.VerificationLog{
		ID:            uuid.New(),
		InvoiceNumber: invoiceNumber,
		IP:            orUnknown(caller.IP),
		UserAgent:     orUnknown(caller.UserAgent),
		Found:         found,
	}
	if err := s.repo.CreateVerificationLog(ctx, entry); err != nil {
		s.logger.Warn("Failed to append verification log",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
	}
}

// RecentLogs lists the latest lookups, newest first
func (s *VerificationService) RecentLogs(ctx context.Context, limit int) ([]models.VerificationLog, error) {
	ctx, span := util.StartSpan(ctx, "VerificationService.RecentLogs")
	defer span.End()

	if limit <= 0 || limit > MaxVerificationLogs {
		limit = MaxVerificationLogs
	}
	logs, err := s.repo.ListVerificationLogs(ctx, limit)
	if err != nil {
		return nil, &DependencyError{Op: "list verification logs", Err: err}
	}
	return logs, nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknownCaller
	}
	return s
}
