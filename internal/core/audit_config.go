package core

import (
	"fmt"
	"time"
)

// Confidence bands used to grade an audit's risk level.
const (
	HighConfidence   = 95
	MediumConfidence = 85
)

// AuditConfig holds the thresholds of the audit pipeline.
type AuditConfig struct {
	// DiscrepancyPercentThreshold: an invoice/PO amount gap above this percent is flagged.
	DiscrepancyPercentThreshold float64 `yaml:"discrepancy_percent_threshold"`
	// LowConfidenceThreshold: audits scoring below this do not pass.
	LowConfidenceThreshold int `yaml:"low_confidence_threshold"`
	DuplicateLookupLimit   int `yaml:"duplicate_lookup_limit"`
	// FraudRoundAmountFloor: round totals (multiples of 100) at or above this are flagged.
	FraudRoundAmountFloor float64 `yaml:"fraud_round_amount_floor"`
	// VendorSimilarityFloor: PO/invoice vendor names less similar than this are flagged.
	VendorSimilarityFloor float64 `yaml:"vendor_similarity_floor"`
	// DuplicateLookupTimeout bounds the invoice history query.
	DuplicateLookupTimeout time.Duration `yaml:"duplicate_lookup_timeout"`
}

// DefaultAuditConfig returns the stock thresholds.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		DiscrepancyPercentThreshold: 5,
		LowConfidenceThreshold:      70,
		DuplicateLookupLimit:        5,
		FraudRoundAmountFloor:       1000,
		VendorSimilarityFloor:       0.7,
		DuplicateLookupTimeout:      3 * time.Second,
	}
}

// Validate checks that the thresholds are usable.
func (c AuditConfig) Validate() error {
	if c.DiscrepancyPercentThreshold < 0 {
		return fmt.Errorf("discrepancy_percent_threshold must be >= 0, got %v", c.DiscrepancyPercentThreshold)
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 100 {
		return fmt.Errorf("low_confidence_threshold must be between 0 and 100, got %d", c.LowConfidenceThreshold)
	}
	if c.DuplicateLookupLimit < 1 {
		return fmt.Errorf("duplicate_lookup_limit must be >= 1, got %d", c.DuplicateLookupLimit)
	}
	if c.FraudRoundAmountFloor < 0 {
		return fmt.Errorf("fraud_round_amount_floor must be >= 0, got %v", c.FraudRoundAmountFloor)
	}
	if c.VendorSimilarityFloor < 0 || c.VendorSimilarityFloor > 1 {
		return fmt.Errorf("vendor_similarity_floor must be between 0 and 1, got %v", c.VendorSimilarityFloor)
	}
	if c.DuplicateLookupTimeout <= 0 {
		return fmt.Errorf("duplicate_lookup_timeout must be positive, got %s", c.DuplicateLookupTimeout)
	}
	return nil
}
