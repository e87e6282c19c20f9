package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// An amount gap above this percent is a high severity mismatch.
	amountHighSeverityPercent = decimal.NewFromInt(10)
	// Line items may deviate this many percent from the invoice total.
	itemsTolerancePercent = decimal.NewFromInt(5)
)

// checkAmount compares the invoice total with the purchase order total.
func (a *Auditor) checkAmount(_ context.Context, st *PipelineState) ([]AuditFlag, error) {
	if st.PO == nil {
		return []AuditFlag{{
			Kind:     FlagMissingPO,
			Severity: SeverityMedium,
			Code:     CodeMissingPO,
			Message:  "No purchase order found for validation",
		}}, nil
	}

	discrepancy := PercentDiscrepancy(st.PO.TotalAmount, st.Invoice.Total)
	if discrepancy.IsNegative() {
		return nil, &LogicError{Stage: StageAmountCheck, Detail: fmt.Sprintf("negative discrepancy %s", discrepancy)}
	}
	if !discrepancy.GreaterThan(decimal.NewFromFloat(a.cfg.DiscrepancyPercentThreshold)) {
		return nil, nil
	}

	severity := SeverityMedium
	if discrepancy.GreaterThan(amountHighSeverityPercent) {
		severity = SeverityHigh
	}
	return []AuditFlag{{
		Kind:     FlagAmountMismatch,
		Severity: severity,
		Code:     CodeAmountMismatch,
		Message: fmt.Sprintf("Amount mismatch: Invoice $%s vs PO $%s (%s%% difference)",
			st.Invoice.Total, st.PO.TotalAmount, discrepancy.StringFixed(1)),
		Details: map[string]any{
			DetailInvoiceAmount:      st.Invoice.Total,
			DetailPOAmount:           st.PO.TotalAmount,
			DetailDiscrepancyPercent: discrepancy,
		},
	}}, nil
}

type historyLookup struct {
	matches []InvoiceMatch
	err     error
}

// checkDuplicate looks for prior completed invoices with the same vendor, date and total.
// A failing store, or one that misses DuplicateLookupTimeout, skips the check and marks
// the stage degraded. Cancellation of ctx itself aborts the run instead.
func (a *Auditor) checkDuplicate(ctx context.Context, st *PipelineState) ([]AuditFlag, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, a.cfg.DuplicateLookupTimeout)
	defer cancel()

	inv, callerID := st.Invoice, st.CallerID
	done := make(chan historyLookup, 1)
	go func() {
		m, err := a.history.FindCompletedInvoices(lookupCtx, callerID, inv.Vendor, inv.Date, inv.Total, a.cfg.DuplicateLookupLimit)
		done <- historyLookup{matches: m, err: err}
	}()

	var res historyLookup
	select {
	case res = <-done:
	case <-lookupCtx.Done():
		res.err = lookupCtx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if res.err != nil {
		cerr := &CollaboratorError{Collaborator: "invoice history", Err: res.err}
		a.logger.Warn("duplicate check skipped",
			"stage", StageDuplicateCheck,
			"caller_id", callerID,
			"error", cerr.Error(),
		)
		st.Degraded = append(st.Degraded, StageDuplicateCheck)
		if a.observer != nil {
			a.observer.ObserveDegraded(StageDuplicateCheck)
		}
		return nil, nil
	}

	matches := res.matches
	if len(matches) > a.cfg.DuplicateLookupLimit {
		matches = matches[:a.cfg.DuplicateLookupLimit]
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return []AuditFlag{{
		Kind:     FlagDuplicate,
		Severity: SeverityHigh,
		Code:     CodeDuplicateInvoice,
		Message:  fmt.Sprintf("Potential duplicate invoice detected (%d similar found)", len(matches)),
		Details: map[string]any{
			DetailSimilarInvoices: matches,
		},
	}}, nil
}

// checkFraud runs the independent fraud heuristics. Each may add one flag.
func (a *Auditor) checkFraud(_ context.Context, st *PipelineState) ([]AuditFlag, error) {
	inv := st.Invoice
	var flags []AuditFlag

	now := a.now().UTC()
	today := now.Truncate(24 * time.Hour)
	if inv.invoiceDate().After(today) {
		flags = append(flags, AuditFlag{
			Kind:     FlagFraud,
			Severity: SeverityHigh,
			Code:     CodeFutureDated,
			Message:  "Invoice dated in the future",
			Details:  map[string]any{DetailInvoiceDate: inv.Date},
		})
	}

	if inv.Total.Mod(hundred).IsZero() && inv.Total.GreaterThanOrEqual(decimal.NewFromFloat(a.cfg.FraudRoundAmountFloor)) {
		flags = append(flags, AuditFlag{
			Kind:     FlagFraud,
			Severity: SeverityLow,
			Code:     CodeRoundAmount,
			Message:  "Suspicious round number amount",
			Details:  map[string]any{DetailAmount: inv.Total},
		})
	}

	if st.PO != nil {
		invVendor, poVendor := strings.ToLower(inv.Vendor), strings.ToLower(st.PO.Vendor)
		if invVendor != poVendor {
			similarity := StringSimilarity(invVendor, poVendor)
			if similarity < 0 || similarity > 1 {
				return nil, &LogicError{Stage: StageFraudCheck, Detail: fmt.Sprintf("vendor similarity %v outside [0,1]", similarity)}
			}
			if similarity < a.cfg.VendorSimilarityFloor {
				flags = append(flags, AuditFlag{
					Kind:     FlagFraud,
					Severity: SeverityHigh,
					Code:     CodeVendorMismatch,
					Message:  fmt.Sprintf("Vendor mismatch: Invoice %q vs PO %q", inv.Vendor, st.PO.Vendor),
					Details: map[string]any{
						DetailInvoiceVendor: inv.Vendor,
						DetailPOVendor:      st.PO.Vendor,
						DetailSimilarity:    similarity,
					},
				})
			}
		}
	}

	if len(inv.Items) > 0 {
		itemsTotal := decimal.Zero
		for _, item := range inv.Items {
			itemsTotal = itemsTotal.Add(item.Total)
		}
		// A zero subtotal is treated as not extracted.
		expected := inv.Total
		if inv.Subtotal != nil && !inv.Subtotal.IsZero() {
			expected = *inv.Subtotal
		}
		discrepancy := PercentDiscrepancy(expected, itemsTotal)
		if discrepancy.IsNegative() {
			return nil, &LogicError{Stage: StageFraudCheck, Detail: fmt.Sprintf("negative discrepancy %s", discrepancy)}
		}
		if discrepancy.GreaterThan(itemsTolerancePercent) {
			flags = append(flags, AuditFlag{
				Kind:     FlagDiscrepancy,
				Severity: SeverityMedium,
				Code:     CodeItemsTotalMismatch,
				Message:  fmt.Sprintf("Line items total ($%s) doesn't match invoice total ($%s)", itemsTotal, expected),
				Details: map[string]any{
					DetailItemsTotal:    itemsTotal,
					DetailExpectedTotal: expected,
					DetailDiscrepancy:   discrepancy,
				},
			})
		}
	}

	return flags, nil
}

// checkPOItems compares invoice and PO line counts when the PO lists items.
func (a *Auditor) checkPOItems(_ context.Context, st *PipelineState) ([]AuditFlag, error) {
	if st.PO == nil || len(st.PO.Items) == 0 {
		return nil, nil
	}
	invCount, poCount := len(st.Invoice.Items), len(st.PO.Items)
	if invCount == poCount {
		return nil, nil
	}
	return []AuditFlag{{
		Kind:     FlagDiscrepancy,
		Severity: SeverityLow,
		Code:     CodeItemCountMismatch,
		Message:  fmt.Sprintf("Item count mismatch: Invoice has %d items, PO has %d", invCount, poCount),
		Details: map[string]any{
			DetailInvoiceItemCount: invCount,
			DetailPOItemCount:      poCount,
		},
	}}, nil
}
