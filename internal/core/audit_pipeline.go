package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Stage names, in run order.
const (
	StageAmountCheck    = "amount_check"
	StageDuplicateCheck = "duplicate_check"
	StageFraudCheck     = "fraud_check"
	StagePOItemCheck    = "po_item_check"
)

// AuditObserver receives audit outcomes, e.g. for metrics.
type AuditObserver interface {
	ObserveAudit(result *AuditResult)
	ObserveDegraded(stage string)
}

// auditStage returns the flags to append for the current state.
// It must not modify flags already in the state.
type auditStage struct {
	name string
	run  func(ctx context.Context, st *PipelineState) ([]AuditFlag, error)
}

// Auditor runs the invoice validation pipeline. It holds no per-run state and
// is safe for concurrent use as long as its InvoiceHistory is.
type Auditor struct {
	cfg      AuditConfig
	history  InvoiceHistory
	logger   *slog.Logger
	now      func() time.Time
	observer AuditObserver
	stages   []auditStage
}

// AuditorOption customises an Auditor.
type AuditorOption func(*Auditor)

// WithLogger sets the logger used for degraded stages.
func WithLogger(l *slog.Logger) AuditorOption {
	return func(a *Auditor) { a.logger = l }
}

// WithClock overrides the clock used by the future-date check.
func WithClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) { a.now = now }
}

// WithObserver registers an observer notified after every completed audit.
func WithObserver(o AuditObserver) AuditorOption {
	return func(a *Auditor) { a.observer = o }
}

// NewAuditor constructs an Auditor. A nil history disables duplicate matches.
func NewAuditor(cfg AuditConfig, history InvoiceHistory, opts ...AuditorOption) *Auditor {
	if history == nil {
		history = NoHistory{}
	}
	a := &Auditor{
		cfg:     cfg,
		history: history,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stages = []auditStage{
		{name: StageAmountCheck, run: a.checkAmount},
		{name: StageDuplicateCheck, run: a.checkDuplicate},
		{name: StageFraudCheck, run: a.checkFraud},
		{name: StagePOItemCheck, run: a.checkPOItems},
	}
	return a
}

// Config returns the thresholds the auditor runs with.
func (a *Auditor) Config() AuditConfig {
	return a.cfg
}

// RunValidation audits one invoice for callerID, optionally against a purchase order.
// Malformed input is rejected with an *InputError before any stage runs. A *LogicError
// from a stage, or cancellation of ctx, aborts the run and no partial result is returned.
func (a *Auditor) RunValidation(ctx context.Context, invoice ExtractedInvoice, callerID string, po *PurchaseOrder) (*AuditResult, error) {
	if callerID == "" {
		return nil, &InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	invoice.Normalize()
	if err := invoice.Validate(); err != nil {
		return nil, err
	}
	if po != nil {
		if err := po.Validate(); err != nil {
			return nil, err
		}
	}

	st := &PipelineState{
		Invoice:  invoice,
		PO:       po,
		CallerID: callerID,
		Flags:    []AuditFlag{},
	}

	for _, stage := range a.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flags, err := stage.run(ctx, st)
		if err != nil {
			var le *LogicError
			if errors.As(err, &le) {
				return nil, err
			}
			return nil, fmt.Errorf("audit stage %s: %w", stage.name, err)
		}
		st.Flags = append(st.Flags, flags...)
	}

	result, err := aggregate(st.Flags, a.cfg.LowConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	result.Degraded = st.Degraded

	if a.observer != nil {
		a.observer.ObserveAudit(result)
	}
	return result, nil
}
