package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// severityPenalty is the confidence cost of one flag.
func severityPenalty(s Severity) int {
	switch s {
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 8
	case SeverityLow:
		return 3
	}
	return 0
}

// Confidence returns 100 minus the penalties of all flags, floored at zero.
func Confidence(flags []AuditFlag) int {
	confidence := 100
	for _, f := range flags {
		confidence -= severityPenalty(f.Severity)
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// RiskLevelFor grades a confidence score against the confidence bands.
func RiskLevelFor(confidence, lowConfidenceThreshold int) RiskLevel {
	switch {
	case confidence >= HighConfidence:
		return RiskLow
	case confidence >= MediumConfidence:
		return RiskMedium
	case confidence >= lowConfidenceThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// BuildValidationResult derives the structured summary from the final flag set.
// Checks switch on flag kind and code, never on message text.
func BuildValidationResult(flags []AuditFlag, confidence, lowConfidenceThreshold int) ValidationResult {
	checks := ValidationChecks{
		AmountMatch: true,
		VendorMatch: true,
		DateValid:   true,
		NoDuplicate: true,
		ItemsMatch:  true,
	}
	discrepancies := make([]Discrepancy, 0, len(flags))

	for _, f := range flags {
		switch f.Kind {
		case FlagAmountMismatch:
			checks.AmountMatch = false
		case FlagDuplicate:
			checks.NoDuplicate = false
		}
		switch f.Code {
		case CodeVendorMismatch:
			checks.VendorMatch = false
		case CodeFutureDated:
			checks.DateValid = false
		case CodeItemsTotalMismatch, CodeItemCountMismatch:
			checks.ItemsMatch = false
		}

		discrepancies = append(discrepancies, Discrepancy{
			Field:      string(f.Kind),
			Expected:   firstDetail(f.Details, DetailPOAmount, DetailPOVendor, DetailExpectedTotal),
			Actual:     firstDetail(f.Details, DetailInvoiceAmount, DetailInvoiceVendor, DetailItemsTotal),
			Difference: firstDecimal(f.Details, DetailDiscrepancyPercent, DetailDiscrepancy),
		})
	}

	return ValidationResult{
		Passed:        confidence >= lowConfidenceThreshold,
		Checks:        checks,
		Discrepancies: discrepancies,
	}
}

func firstDetail(details map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := details[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstDecimal(details map[string]any, keys ...string) *decimal.Decimal {
	for _, k := range keys {
		if d, ok := details[k].(decimal.Decimal); ok {
			return &d
		}
	}
	return nil
}

// aggregate reduces the final flags to an AuditResult.
func aggregate(flags []AuditFlag, lowConfidenceThreshold int) (*AuditResult, error) {
	confidence := Confidence(flags)
	if confidence < 0 || confidence > 100 {
		return nil, &LogicError{Stage: "aggregate", Detail: fmt.Sprintf("confidence %d outside [0,100]", confidence)}
	}
	return &AuditResult{
		Flags:             flags,
		Confidence:        confidence,
		RiskLevel:         RiskLevelFor(confidence, lowConfidenceThreshold),
		ValidationResults: BuildValidationResult(flags, confidence, lowConfidenceThreshold),
	}, nil
}
