package app

import (
	"context"

	"invoice-auditor/internal/core"
)

// InvoiceExtractor turns invoice document text into structured fields.
// *ai.Extractor satisfies it.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, documentText string) (*core.ExtractedInvoice, error)
}

// AuditService is the single interface the adapters (CLI, Web) call.
// Implementations contain no presentation logic.
type AuditService interface {
	// AuditInvoice records an invoice, extracts its fields when only document text is
	// given, audits it against an optional purchase order and stores the audit.
	AuditInvoice(ctx context.Context, req AuditInvoiceRequest) (*AuditInvoiceResult, error)

	// GetAudit returns one of the caller's audits, or core.ErrNotFound.
	GetAudit(ctx context.Context, callerID, auditID string) (*core.AuditRecord, error)

	// ListAudits returns the caller's most recent audits, newest first.
	ListAudits(ctx context.Context, callerID string, limit int) (*AuditListResult, error)

	// CreatePurchaseOrder stores a purchase order for the caller.
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)

	// GetPurchaseOrder returns one of the caller's purchase orders, or core.ErrNotFound.
	GetPurchaseOrder(ctx context.Context, callerID, poID string) (*PurchaseOrderResult, error)
}
