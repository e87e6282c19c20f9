package app

import (
	"invoice-auditor/internal/core"

	"github.com/shopspring/decimal"
)

// AuditInvoiceRequest is the input for AuditInvoice. Exactly one of DocumentText and
// Extracted must be set. At most one of POID and PO may be set.
type AuditInvoiceRequest struct {
	CallerID     string
	FileName     string
	FileType     string
	DocumentText string
	Extracted    *core.ExtractedInvoice
	POID         string
	PO           *core.PurchaseOrder
}

// CreatePurchaseOrderRequest is the input for creating a purchase order.
type CreatePurchaseOrderRequest struct {
	CallerID    string
	PONumber    string
	Vendor      string
	TotalAmount decimal.Decimal
	IssueDate   *string // YYYY-MM-DD
	Items       []core.LineItem
}
