package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for invoice, due and PO dates.
const DateLayout = "2006-01-02"

// LineItem is a single line extracted from an invoice or carried on a purchase order.
// Quantity, unit price and total are not cross-checked here; the fraud stage flags mismatches.
type LineItem struct {
	Description string          `json:"description" jsonschema_description:"Line item description as printed on the invoice"`
	Quantity    decimal.Decimal `json:"quantity" jsonschema_description:"Quantity as a decimal string, e.g. \"2\""`
	UnitPrice   decimal.Decimal `json:"unit_price" jsonschema_description:"Unit price as a decimal string, e.g. \"49.99\""`
	Total       decimal.Decimal `json:"total" jsonschema_description:"Line total as a decimal string"`
}

// ExtractedInvoice is the fixed record shape produced by document extraction.
// Date fields are YYYY-MM-DD strings so that duplicate lookup can match them exactly.
type ExtractedInvoice struct {
	Vendor        string           `json:"vendor" jsonschema_description:"Vendor or supplier name"`
	InvoiceNumber *string          `json:"invoice_number,omitempty" jsonschema_description:"Invoice number if printed"`
	Date          string           `json:"date" jsonschema_description:"Invoice date in YYYY-MM-DD format"`
	DueDate       *string          `json:"due_date,omitempty" jsonschema_description:"Due date in YYYY-MM-DD format if printed"`
	Total         decimal.Decimal  `json:"total" jsonschema_description:"Invoice grand total as a decimal string"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty" jsonschema_description:"Subtotal before tax as a decimal string"`
	Tax           *decimal.Decimal `json:"tax,omitempty" jsonschema_description:"Tax amount as a decimal string"`
	Items         []LineItem       `json:"items" jsonschema_description:"Line items in document order; empty if none are listed"`
}

// PurchaseOrder is the optional counterpart an invoice is checked against.
// ID, CallerID, IssueDate and CreatedAt are only set for stored purchase orders.
type PurchaseOrder struct {
	ID          string          `json:"id,omitempty"`
	CallerID    string          `json:"caller_id,omitempty"`
	PONumber    string          `json:"po_number"`
	Vendor      string          `json:"vendor"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IssueDate   *string         `json:"issue_date,omitempty"` // YYYY-MM-DD
	Items       []LineItem      `json:"items,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// Normalize trims extraction noise from the free-text fields.
func (inv *ExtractedInvoice) Normalize() {
	inv.Vendor = strings.TrimSpace(inv.Vendor)
	inv.Date = strings.TrimSpace(inv.Date)
	if inv.InvoiceNumber != nil {
		n := strings.TrimSpace(*inv.InvoiceNumber)
		if n == "" || strings.EqualFold(n, "null") {
			inv.InvoiceNumber = nil
		} else {
			inv.InvoiceNumber = &n
		}
	}
	if inv.DueDate != nil {
		d := strings.TrimSpace(*inv.DueDate)
		if d == "" || strings.EqualFold(d, "null") {
			inv.DueDate = nil
		} else {
			inv.DueDate = &d
		}
	}
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
}

// Validate rejects malformed invoice data before an audit starts.
// A missing invoice number or due date is legitimate and not an error.
func (inv *ExtractedInvoice) Validate() error {
	if strings.TrimSpace(inv.Vendor) == "" {
		return &InputError{Field: "vendor", Reason: "must not be empty"}
	}
	if _, err := time.Parse(DateLayout, inv.Date); err != nil {
		return &InputError{Field: "date", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", inv.Date)}
	}
	if inv.DueDate != nil {
		if _, err := time.Parse(DateLayout, *inv.DueDate); err != nil {
			return &InputError{Field: "due_date", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *inv.DueDate)}
		}
	}
	if inv.Total.IsNegative() {
		return &InputError{Field: "total", Reason: "must not be negative"}
	}
	if inv.Subtotal != nil && inv.Subtotal.IsNegative() {
		return &InputError{Field: "subtotal", Reason: "must not be negative"}
	}
	if inv.Tax != nil && inv.Tax.IsNegative() {
		return &InputError{Field: "tax", Reason: "must not be negative"}
	}
	return validateItems("items", inv.Items)
}

// Validate rejects a malformed purchase order.
func (po *PurchaseOrder) Validate() error {
	if strings.TrimSpace(po.Vendor) == "" {
		return &InputError{Field: "po.vendor", Reason: "must not be empty"}
	}
	if po.TotalAmount.IsNegative() {
		return &InputError{Field: "po.total_amount", Reason: "must not be negative"}
	}
	if po.IssueDate != nil {
		if _, err := time.Parse(DateLayout, *po.IssueDate); err != nil {
			return &InputError{Field: "po.issue_date", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *po.IssueDate)}
		}
	}
	return validateItems("po.items", po.Items)
}

func validateItems(field string, items []LineItem) error {
	for i, item := range items {
		switch {
		case item.Quantity.IsNegative():
			return &InputError{Field: fmt.Sprintf("%s[%d].quantity", field, i), Reason: "must not be negative"}
		case item.UnitPrice.IsNegative():
			return &InputError{Field: fmt.Sprintf("%s[%d].unit_price", field, i), Reason: "must not be negative"}
		case item.Total.IsNegative():
			return &InputError{Field: fmt.Sprintf("%s[%d].total", field, i), Reason: "must not be negative"}
		}
	}
	return nil
}

// invoiceDate returns the parsed invoice date. Callers must have run Validate.
func (inv *ExtractedInvoice) invoiceDate() time.Time {
	t, _ := time.Parse(DateLayout, inv.Date)
	return t
}
