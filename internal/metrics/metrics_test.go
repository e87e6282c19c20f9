package metrics

import (
	"testing"

	"invoice-auditor/internal/core"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuditMetrics_ObserveAudit(t *testing.T) {
	m := NewAuditMetrics()

	m.ObserveAudit(&core.AuditResult{
		Flags: []core.AuditFlag{
			{Kind: core.FlagFraud, Code: core.CodeRoundAmount, Severity: core.SeverityLow},
			{Kind: core.FlagMissingPO, Code: core.CodeMissingPO, Severity: core.SeverityMedium},
		},
		Confidence:        89,
		RiskLevel:         core.RiskMedium,
		ValidationResults: core.ValidationResult{Passed: true},
	})
	m.ObserveDegraded(core.StageDuplicateCheck)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.audits.WithLabelValues("true", "medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flags.WithLabelValues("fraud", "round_amount", "low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flags.WithLabelValues("missing_po", "missing_po", "medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues(core.StageDuplicateCheck)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.confidence))
}
