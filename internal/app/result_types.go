package app

import "invoice-auditor/internal/core"

// AuditInvoiceResult is returned by AuditInvoice.
type AuditInvoiceResult struct {
	Invoice *core.Invoice
	Audit   *core.AuditRecord
}

// AuditListResult is returned by ListAudits.
type AuditListResult struct {
	Audits []core.AuditRecord
}

// PurchaseOrderResult is returned by purchase order operations.
type PurchaseOrderResult struct {
	PurchaseOrder *core.PurchaseOrder
}
