package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"invoice-auditor/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

// stubHistory returns canned matches. If block is non-nil the lookup waits on it,
// ignoring its context.
type stubHistory struct {
	matches []core.InvoiceMatch
	err     error
	block   chan struct{}

	mu       sync.Mutex
	callerID string
	limit    int
}

func (s *stubHistory) FindCompletedInvoices(_ context.Context, callerID, _, _ string, _ decimal.Decimal, limit int) ([]core.InvoiceMatch, error) {
	s.mu.Lock()
	s.callerID, s.limit = callerID, limit
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.matches, s.err
}

type recordingObserver struct {
	mu       sync.Mutex
	audits   []*core.AuditResult
	degraded []string
}

func (o *recordingObserver) ObserveAudit(r *core.AuditResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audits = append(o.audits, r)
}

func (o *recordingObserver) ObserveDegraded(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, stage)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func acmeInvoice() core.ExtractedInvoice {
	return core.ExtractedInvoice{Vendor: "Acme Corp", Date: "2024-01-10", Total: dec("1000"), Items: []core.LineItem{}}
}

func newAuditor(h core.InvoiceHistory, opts ...core.AuditorOption) *core.Auditor {
	return core.NewAuditor(core.DefaultAuditConfig(), h, append([]core.AuditorOption{core.WithClock(fixedClock)}, opts...)...)
}

func kinds(flags []core.AuditFlag) []core.FlagKind {
	out := make([]core.FlagKind, len(flags))
	for i, f := range flags {
		out[i] = f.Kind
	}
	return out
}

func TestRunValidation_RoundAmountOnly(t *testing.T) {
	po := &core.PurchaseOrder{Vendor: "Acme Corp", TotalAmount: dec("1000")}

	res, err := newAuditor(&stubHistory{}).RunValidation(context.Background(), acmeInvoice(), "caller-1", po)
	require.NoError(t, err)

	require.Len(t, res.Flags, 1)
	assert.Equal(t, core.FlagFraud, res.Flags[0].Kind)
	assert.Equal(t, core.SeverityLow, res.Flags[0].Severity)
	assert.Equal(t, core.CodeRoundAmount, res.Flags[0].Code)
	assert.Equal(t, 97, res.Confidence)
	assert.Equal(t, core.RiskLow, res.RiskLevel)
	assert.True(t, res.ValidationResults.Passed)
	assert.Equal(t, core.ValidationChecks{AmountMatch: true, VendorMatch: true, DateValid: true, NoDuplicate: true, ItemsMatch: true}, res.ValidationResults.Checks)
	assert.Empty(t, res.Degraded)
}

func TestRunValidation_AmountMismatch(t *testing.T) {
	po := &core.PurchaseOrder{Vendor: "Acme Corp", TotalAmount: dec("800")}

	res, err := newAuditor(&stubHistory{}).RunValidation(context.Background(), acmeInvoice(), "caller-1", po)
	require.NoError(t, err)

	require.Len(t, res.Flags, 2)
	mismatch := res.Flags[0]
	assert.Equal(t, core.FlagAmountMismatch, mismatch.Kind)
	assert.Equal(t, core.SeverityHigh, mismatch.Severity)
	pct, ok := mismatch.Details[core.DetailDiscrepancyPercent].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, pct.Equal(dec("25")), "got %s", pct)
	assert.Equal(t, 82, res.Confidence)
	assert.Equal(t, core.RiskHigh, res.RiskLevel)
	assert.False(t, res.ValidationResults.Checks.AmountMatch)

	require.Len(t, res.ValidationResults.Discrepancies, 2)
	d := res.ValidationResults.Discrepancies[0]
	assert.Equal(t, "amount_mismatch", d.Field)
	require.NotNil(t, d.Difference)
	assert.True(t, d.Difference.Equal(dec("25")))
}

func TestRunValidation_AmountMismatchSeverity(t *testing.T) {
	tests := []struct {
		poTotal  string
		severity core.Severity
		flagged  bool
	}{
		{"1000", "", false},
		{"960", "", false},                 // 4.2%
		{"935", core.SeverityMedium, true}, // 6.95%
		{"910", core.SeverityMedium, true}, // 9.9%
		{"900", core.SeverityHigh, true},   // 11.1%
	}
	for _, tt := range tests {
		t.Run(tt.poTotal, func(t *testing.T) {
			inv := acmeInvoice()
			inv.Total = dec("999.99")
			po := &core.PurchaseOrder{Vendor: "Acme Corp", TotalAmount: dec(tt.poTotal)}
			res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", po)
			require.NoError(t, err)

			var found *core.AuditFlag
			for i := range res.Flags {
				if res.Flags[i].Kind == core.FlagAmountMismatch {
					found = &res.Flags[i]
				}
			}
			if !tt.flagged {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.severity, found.Severity)
		})
	}
}

func TestRunValidation_FutureDated(t *testing.T) {
	inv := acmeInvoice()
	inv.Date = "2025-06-01"
	inv.Total = dec("512.40")

	res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", nil)
	require.NoError(t, err)

	var future *core.AuditFlag
	for i := range res.Flags {
		if res.Flags[i].Code == core.CodeFutureDated {
			future = &res.Flags[i]
		}
	}
	require.NotNil(t, future)
	assert.Equal(t, core.FlagFraud, future.Kind)
	assert.Equal(t, core.SeverityHigh, future.Severity)
	assert.Contains(t, strings.ToLower(future.Message), "future")
	assert.False(t, res.ValidationResults.Checks.DateValid)
}

func TestRunValidation_TodayIsNotFuture(t *testing.T) {
	inv := acmeInvoice()
	inv.Date = today.Format(core.DateLayout)

	res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", nil)
	require.NoError(t, err)
	assert.True(t, res.ValidationResults.Checks.DateValid)
}

func TestRunValidation_Duplicates(t *testing.T) {
	history := &stubHistory{matches: []core.InvoiceMatch{
		{ID: "inv-a", FileName: "a.pdf"},
		{ID: "inv-b", FileName: "b.pdf"},
	}}
	inv := acmeInvoice()
	inv.Total = dec("1234.56")

	res, err := newAuditor(history).RunValidation(context.Background(), inv, "caller-7", nil)
	require.NoError(t, err)

	var dups []core.AuditFlag
	for _, f := range res.Flags {
		if f.Kind == core.FlagDuplicate {
			dups = append(dups, f)
		}
	}
	require.Len(t, dups, 1)
	assert.Equal(t, core.SeverityHigh, dups[0].Severity)
	similar, ok := dups[0].Details[core.DetailSimilarInvoices].([]core.InvoiceMatch)
	require.True(t, ok)
	assert.Len(t, similar, 2)
	assert.False(t, res.ValidationResults.Checks.NoDuplicate)
	assert.Equal(t, "caller-7", history.callerID)
	assert.Equal(t, 5, history.limit)
}

func TestRunValidation_DuplicateMatchesCappedAtLimit(t *testing.T) {
	matches := make([]core.InvoiceMatch, 8)
	res, err := newAuditor(&stubHistory{matches: matches}).RunValidation(context.Background(), acmeInvoice(), "c", nil)
	require.NoError(t, err)

	for _, f := range res.Flags {
		if f.Kind == core.FlagDuplicate {
			assert.Len(t, f.Details[core.DetailSimilarInvoices], 5)
			return
		}
	}
	t.Fatal("expected a duplicate flag")
}

func TestRunValidation_NoPurchaseOrder(t *testing.T) {
	inv := acmeInvoice()
	inv.Total = dec("431.17")

	res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", nil)
	require.NoError(t, err)

	missing := 0
	for _, f := range res.Flags {
		assert.NotEqual(t, core.FlagAmountMismatch, f.Kind)
		assert.NotEqual(t, core.CodeVendorMismatch, f.Code)
		assert.NotEqual(t, core.CodeItemCountMismatch, f.Code)
		if f.Kind == core.FlagMissingPO {
			missing++
			assert.Equal(t, core.SeverityMedium, f.Severity)
		}
	}
	assert.Equal(t, 1, missing)
	assert.Equal(t, 92, res.Confidence)
}

func TestRunValidation_StageOrder(t *testing.T) {
	history := &stubHistory{matches: []core.InvoiceMatch{{ID: "inv-a"}}}
	inv := core.ExtractedInvoice{
		Vendor: "Globex Industries",
		Date:   "2025-01-01",
		Total:  dec("2000"),
		Items: []core.LineItem{
			{Description: "Consulting", Total: dec("1500")},
		},
	}
	po := &core.PurchaseOrder{
		Vendor:      "Initech",
		TotalAmount: dec("1000"),
		Items:       []core.LineItem{{Description: "a"}, {Description: "b"}},
	}

	res, err := newAuditor(history).RunValidation(context.Background(), inv, "c", po)
	require.NoError(t, err)

	assert.Equal(t, []core.FlagKind{
		core.FlagAmountMismatch, // amount_check
		core.FlagDuplicate,      // duplicate_check
		core.FlagFraud,          // fraud_check: future date
		core.FlagFraud,          // fraud_check: round amount
		core.FlagFraud,          // fraud_check: vendor
		core.FlagDiscrepancy,    // fraud_check: items total
		core.FlagDiscrepancy,    // po_item_check
	}, kinds(res.Flags))
	assert.Equal(t, []core.FlagCode{core.CodeFutureDated, core.CodeRoundAmount, core.CodeVendorMismatch, core.CodeItemsTotalMismatch, core.CodeItemCountMismatch},
		[]core.FlagCode{res.Flags[2].Code, res.Flags[3].Code, res.Flags[4].Code, res.Flags[5].Code, res.Flags[6].Code})

	// 100 - 15 - 15 - 15 - 3 - 15 - 8 - 3
	assert.Equal(t, 26, res.Confidence)
	assert.Equal(t, core.RiskCritical, res.RiskLevel)
	assert.False(t, res.ValidationResults.Passed)
	assert.Equal(t, core.ValidationChecks{}, res.ValidationResults.Checks)
}

func TestRunValidation_VendorSimilarity(t *testing.T) {
	tests := []struct {
		poVendor string
		flagged  bool
	}{
		{"Acme Corp", false},
		{"ACME CORP", false},
		{"Acme Corp.", false},
		{"Acme Corporation", true},
		{"Initech", true},
	}
	for _, tt := range tests {
		t.Run(tt.poVendor, func(t *testing.T) {
			inv := acmeInvoice()
			inv.Total = dec("999.99")
			po := &core.PurchaseOrder{Vendor: tt.poVendor, TotalAmount: dec("999.99")}
			res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", po)
			require.NoError(t, err)
			assert.Equal(t, !tt.flagged, res.ValidationResults.Checks.VendorMatch)
		})
	}
}

func TestRunValidation_ItemsAgainstSubtotal(t *testing.T) {
	items := []core.LineItem{{Description: "a", Total: dec("450")}, {Description: "b", Total: dec("100")}}
	subtotal := dec("550")
	zero := decimal.Zero

	tests := []struct {
		name     string
		subtotal *decimal.Decimal
		want     bool
	}{
		{"subtotal matches", &subtotal, true},
		{"no subtotal falls back to total", nil, false},
		{"zero subtotal falls back to total", &zero, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := acmeInvoice()
			inv.Total = dec("660")
			inv.Subtotal = tt.subtotal
			inv.Items = items
			res, err := newAuditor(nil).RunValidation(context.Background(), inv, "c", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ValidationResults.Checks.ItemsMatch)
		})
	}
}

func TestRunValidation_HistoryErrorDegrades(t *testing.T) {
	obs := &recordingObserver{}
	history := &stubHistory{err: errors.New("connection refused")}

	res, err := newAuditor(history, core.WithObserver(obs)).RunValidation(context.Background(), acmeInvoice(), "c", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{core.StageDuplicateCheck}, res.Degraded)
	assert.True(t, res.ValidationResults.Checks.NoDuplicate)
	assert.Equal(t, []string{core.StageDuplicateCheck}, obs.degraded)
	require.Len(t, obs.audits, 1)
	assert.Same(t, res, obs.audits[0])
}

func TestRunValidation_HistoryTimeoutDegrades(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	cfg := core.DefaultAuditConfig()
	cfg.DuplicateLookupTimeout = 20 * time.Millisecond
	auditor := core.NewAuditor(cfg, &stubHistory{block: block}, core.WithClock(fixedClock))

	start := time.Now()
	res, err := auditor.RunValidation(context.Background(), acmeInvoice(), "c", nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{core.StageDuplicateCheck}, res.Degraded)
	// Later stages still ran.
	assert.Contains(t, kinds(res.Flags), core.FlagFraud)
}

func TestRunValidation_CancelledDuringLookupAborts(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	obs := &recordingObserver{}
	auditor := newAuditor(&stubHistory{block: block}, core.WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	t.Cleanup(func() { timer.Stop() })

	start := time.Now()
	res, err := auditor.RunValidation(ctx, acmeInvoice(), "c", nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, obs.degraded, "cancellation is not a degraded stage")
	assert.Empty(t, obs.audits)
}

func TestRunValidation_CancelledBeforeStart(t *testing.T) {
	history := &stubHistory{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newAuditor(history).RunValidation(ctx, acmeInvoice(), "c", nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, history.callerID, "no lookup after cancellation")
}

func TestRunValidation_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		inv    core.ExtractedInvoice
		caller string
		po     *core.PurchaseOrder
	}{
		{"empty caller", acmeInvoice(), "", nil},
		{"empty vendor", core.ExtractedInvoice{Date: "2024-01-10", Total: dec("1")}, "c", nil},
		{"bad date", core.ExtractedInvoice{Vendor: "v", Date: "10/01/2024", Total: dec("1")}, "c", nil},
		{"negative total", core.ExtractedInvoice{Vendor: "v", Date: "2024-01-10", Total: dec("-1")}, "c", nil},
		{"po without vendor", acmeInvoice(), "c", &core.PurchaseOrder{TotalAmount: dec("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &stubHistory{}
			res, err := newAuditor(history).RunValidation(context.Background(), tt.inv, tt.caller, tt.po)
			assert.Nil(t, res)
			assert.True(t, core.IsInputError(err), "got %v", err)
			assert.Empty(t, history.callerID, "no stage may run on bad input")
		})
	}
}

func TestRunValidation_ConcurrentUse(t *testing.T) {
	auditor := newAuditor(&stubHistory{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := auditor.RunValidation(context.Background(), acmeInvoice(), "c", nil)
			assert.NoError(t, err)
			assert.Equal(t, 89, res.Confidence)
		}()
	}
	wg.Wait()
}
