package service

import (
	"context"
	"fmt"
	"time"
)

// SequenceAllocator mints invoice numbers of the form PREFIX-YEAR-NNNN
type SequenceAllocator struct {
	repo   SequenceRepository
	prefix string
	now    func() time.Time
}

// NewSequenceAllocator creates a new allocator
func NewSequenceAllocator(repo SequenceRepository, prefix string) *SequenceAllocator {
	return &SequenceAllocator{repo: repo, prefix: prefix, now: time.Now}
}

// ScopeKey returns the counter key for the period containing t
func (a *SequenceAllocator) ScopeKey(t time.Time) string {
	return fmt.Sprintf("%s-%d", a.prefix, t.UTC().Year())
}

// Next allocates the next invoice number in the current scope. The
// increment is a single store statement; callers never share a value.
func (a *SequenceAllocator) Next(ctx context.Context) (string, error) {
	scope := a.ScopeKey(a.now())
	n, err := a.repo.NextSequence(ctx, scope)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(scope, n), nil
}

// FormatInvoiceNumber zero-pads n to four digits; wider values are kept whole
func FormatInvoiceNumber(scope string, n int64) string {
	return fmt.Sprintf("%s-%04d", scope, n)
}
