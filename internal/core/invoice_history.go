package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// InvoiceHistory looks up prior invoices for duplicate detection.
// Implementations must be read-only and safe for concurrent use.
//
// The lookup runs on its own goroutine and the audit stops waiting when ctx is done.
// Implementations should return promptly once ctx is cancelled: one that ignores ctx
// keeps its goroutine alive until it returns, and its result is discarded.
type InvoiceHistory interface {
	// FindCompletedInvoices returns up to limit completed invoices owned by callerID whose
	// extracted vendor, date and total equal the given values exactly, newest first.
	FindCompletedInvoices(ctx context.Context, callerID, vendor, date string, total decimal.Decimal, limit int) ([]InvoiceMatch, error)
}

// NoHistory is an InvoiceHistory with no prior invoices, for offline audits.
type NoHistory struct{}

func (NoHistory) FindCompletedInvoices(context.Context, string, string, string, decimal.Decimal, int) ([]InvoiceMatch, error) {
	return nil, nil
}
