package core

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

var (
	discrepancyEpsilon = decimal.New(1, -6)
	hundred            = decimal.NewFromInt(100)
)

// PercentDiscrepancy returns |expected - actual| / max(|expected|, epsilon) * 100.
// Both zero yields zero.
func PercentDiscrepancy(expected, actual decimal.Decimal) decimal.Decimal {
	diff := expected.Sub(actual).Abs()
	if diff.IsZero() {
		return decimal.Zero
	}
	base := decimal.Max(expected.Abs(), discrepancyEpsilon)
	return diff.Div(base).Mul(hundred)
}

// StringSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)), counted in runes.
// Comparison is case-sensitive; callers lower-case both inputs first.
func StringSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
