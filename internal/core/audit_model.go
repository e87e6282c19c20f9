package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlagKind string

const (
	FlagDiscrepancy    FlagKind = "discrepancy"
	FlagDuplicate      FlagKind = "duplicate"
	FlagFraud          FlagKind = "fraud"
	FlagMissingPO      FlagKind = "missing_po"
	FlagAmountMismatch FlagKind = "amount_mismatch"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// FlagCode is the stable machine-readable sub-kind of a flag, assigned when the
// flag is created. Result checks switch on it; Message is for humans only.
type FlagCode string

const (
	CodeMissingPO          FlagCode = "missing_po"
	CodeAmountMismatch     FlagCode = "amount_mismatch"
	CodeDuplicateInvoice   FlagCode = "duplicate_invoice"
	CodeFutureDated        FlagCode = "future_dated"
	CodeRoundAmount        FlagCode = "round_amount"
	CodeVendorMismatch     FlagCode = "vendor_mismatch"
	CodeItemsTotalMismatch FlagCode = "items_total_mismatch"
	CodeItemCountMismatch  FlagCode = "item_count_mismatch"
)

// Detail keys attached to flags.
const (
	DetailInvoiceAmount      = "invoice_amount"
	DetailPOAmount           = "po_amount"
	DetailDiscrepancyPercent = "discrepancy_percent"
	DetailSimilarInvoices    = "similar_invoices"
	DetailInvoiceDate        = "invoice_date"
	DetailAmount             = "amount"
	DetailInvoiceVendor      = "invoice_vendor"
	DetailPOVendor           = "po_vendor"
	DetailSimilarity         = "similarity"
	DetailItemsTotal         = "items_total"
	DetailExpectedTotal      = "expected_total"
	DetailDiscrepancy        = "discrepancy"
	DetailInvoiceItemCount   = "invoice_item_count"
	DetailPOItemCount        = "po_item_count"
)

// AuditFlag is one finding. Flags are never edited or removed once appended.
type AuditFlag struct {
	Kind     FlagKind       `json:"type"`
	Severity Severity       `json:"severity"`
	Code     FlagCode       `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ValidationChecks holds the derived pass/fail booleans of an audit.
type ValidationChecks struct {
	AmountMatch bool `json:"amount_match"`
	VendorMatch bool `json:"vendor_match"`
	DateValid   bool `json:"date_valid"`
	NoDuplicate bool `json:"no_duplicate"`
	ItemsMatch  bool `json:"items_match"`
}

// Discrepancy is the tabular view of one flag. Absent values are nil.
type Discrepancy struct {
	Field      string           `json:"field"`
	Expected   any              `json:"expected"`
	Actual     any              `json:"actual"`
	Difference *decimal.Decimal `json:"difference"`
}

// ValidationResult is derived entirely from the final flag set.
type ValidationResult struct {
	Passed        bool             `json:"passed"`
	Checks        ValidationChecks `json:"checks"`
	Discrepancies []Discrepancy    `json:"discrepancies"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AuditResult is the output of one audit run.
// Degraded names the stages that ran without their collaborator.
type AuditResult struct {
	Flags             []AuditFlag      `json:"flags"`
	Confidence        int              `json:"confidence"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	ValidationResults ValidationResult `json:"validation_results"`
	Degraded          []string         `json:"degraded,omitempty"`
}

// InvoiceMatch is a prior completed invoice sharing a candidate's fingerprint.
type InvoiceMatch struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

// PipelineState is the accumulator threaded through the audit stages of a single run.
type PipelineState struct {
	Invoice  ExtractedInvoice
	PO       *PurchaseOrder
	CallerID string
	Flags    []AuditFlag
	Degraded []string
}
