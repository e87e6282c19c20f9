package core

import (
	"context"
	"time"
)

type InvoiceStatus string

const (
	InvoiceStatusPending    InvoiceStatus = "pending"
	InvoiceStatusProcessing InvoiceStatus = "processing"
	InvoiceStatusCompleted  InvoiceStatus = "completed"
	InvoiceStatusFailed     InvoiceStatus = "failed"
)

// MaxListedAudits caps ListAudits.
const MaxListedAudits = 50

// Invoice is an uploaded invoice document and, once completed, its extracted data.
type Invoice struct {
	ID            string            `json:"id"`
	CallerID      string            `json:"caller_id"`
	FileName      string            `json:"file_name"`
	FileType      string            `json:"file_type"`
	Status        InvoiceStatus     `json:"status"`
	ExtractedData *ExtractedInvoice `json:"extracted_data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// AuditRecord is a stored audit outcome.
type AuditRecord struct {
	ID                string           `json:"id"`
	CallerID          string           `json:"caller_id"`
	InvoiceID         string           `json:"invoice_id"`
	POID              *string          `json:"po_id,omitempty"`
	ConfidenceScore   int              `json:"confidence_score"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	Flags             []AuditFlag      `json:"flags"`
	ValidationResults ValidationResult `json:"validation_results"`
	Degraded          []string         `json:"degraded,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// InvoiceStore persists invoices, purchase orders and audits, and serves as the
// invoice history for duplicate detection. Every lookup is scoped by caller.
type InvoiceStore interface {
	InvoiceHistory

	// CreateInvoice records a new invoice in PROCESSING state.
	CreateInvoice(ctx context.Context, callerID, fileName, fileType string) (*Invoice, error)

	// CompleteInvoice stores the extracted data and marks a PROCESSING invoice COMPLETED.
	CompleteInvoice(ctx context.Context, invoiceID string, data ExtractedInvoice) error

	// FailInvoice marks a PROCESSING invoice FAILED.
	FailInvoice(ctx context.Context, invoiceID string) error

	// CreatePurchaseOrder stores a purchase order owned by po.CallerID.
	CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (*PurchaseOrder, error)

	// GetPurchaseOrder returns the caller's purchase order, or ErrNotFound.
	GetPurchaseOrder(ctx context.Context, callerID, poID string) (*PurchaseOrder, error)

	// SaveAudit stores an audit outcome and returns it with ID and CreatedAt set.
	SaveAudit(ctx context.Context, rec AuditRecord) (*AuditRecord, error)

	// GetAudit returns the caller's audit, or ErrNotFound.
	GetAudit(ctx context.Context, callerID, auditID string) (*AuditRecord, error)

	// ListAudits returns the caller's audits, newest first, at most limit (capped at MaxListedAudits).
	ListAudits(ctx context.Context, callerID string, limit int) ([]AuditRecord, error)
}

// NewAuditRecord builds the storable form of an audit result.
func NewAuditRecord(callerID, invoiceID string, poID *string, result *AuditResult) AuditRecord {
	return AuditRecord{
		CallerID:          callerID,
		InvoiceID:         invoiceID,
		POID:              poID,
		ConfidenceScore:   result.Confidence,
		RiskLevel:         result.RiskLevel,
		Flags:             result.Flags,
		ValidationResults: result.ValidationResults,
		Degraded:          result.Degraded,
	}
}
