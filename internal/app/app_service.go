package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"invoice-auditor/internal/core"
)

// ErrExtractorUnavailable is returned when document text is submitted but no
// extractor is configured.
var ErrExtractorUnavailable = errors.New("invoice extraction is not configured")

const (
	defaultFileName = "invoice.json"
	defaultFileType = "application/json"
)

type auditService struct {
	store     core.InvoiceStore
	auditor   *core.Auditor
	extractor InvoiceExtractor
	logger    *slog.Logger
}

// NewAuditService constructs an auditService that satisfies AuditService.
// extractor may be nil, in which case only pre-extracted invoices are accepted.
func NewAuditService(store core.InvoiceStore, auditor *core.Auditor, extractor InvoiceExtractor, logger *slog.Logger) AuditService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &auditService{
		store:     store,
		auditor:   auditor,
		extractor: extractor,
		logger:    logger,
	}
}

// AuditInvoice runs the full audit flow for one invoice.
// The invoice is completed only after validation so that duplicate lookup never
// sees the invoice being audited.
func (s *auditService) AuditInvoice(ctx context.Context, req AuditInvoiceRequest) (*AuditInvoiceResult, error) {
	if err := checkAuditRequest(req); err != nil {
		return nil, err
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = defaultFileName
	}
	fileType := req.FileType
	if fileType == "" {
		fileType = defaultFileType
	}

	invoice, err := s.store.CreateInvoice(ctx, req.CallerID, fileName, fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	result, err := s.auditInvoice(ctx, invoice, req)
	if err != nil {
		if failErr := s.store.FailInvoice(ctx, invoice.ID); failErr != nil {
			s.logger.Error("failed to mark invoice failed", "invoice_id", invoice.ID, "error", failErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *auditService) auditInvoice(ctx context.Context, invoice *core.Invoice, req AuditInvoiceRequest) (*AuditInvoiceResult, error) {
	data, err := s.extract(ctx, req)
	if err != nil {
		return nil, err
	}

	po, poID, err := s.resolvePurchaseOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	audit, err := s.auditor.RunValidation(ctx, *data, req.CallerID, po)
	if err != nil {
		return nil, err
	}

	if err := s.store.CompleteInvoice(ctx, invoice.ID, *data); err != nil {
		return nil, fmt.Errorf("failed to complete invoice: %w", err)
	}
	invoice.Status = core.InvoiceStatusCompleted
	invoice.ExtractedData = data

	rec, err := s.store.SaveAudit(ctx, core.NewAuditRecord(req.CallerID, invoice.ID, poID, audit))
	if err != nil {
		return nil, fmt.Errorf("failed to save audit: %w", err)
	}

	s.logger.Info("invoice audited",
		"invoice_id", invoice.ID,
		"audit_id", rec.ID,
		"confidence", rec.ConfidenceScore,
		"risk_level", rec.RiskLevel,
		"flags", len(rec.Flags),
	)
	return &AuditInvoiceResult{Invoice: invoice, Audit: rec}, nil
}

func checkAuditRequest(req AuditInvoiceRequest) error {
	if req.CallerID == "" {
		return &core.InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	hasText := strings.TrimSpace(req.DocumentText) != ""
	if hasText == (req.Extracted != nil) {
		return &core.InputError{Field: "invoice", Reason: "requires exactly one of document_text or extracted_data"}
	}
	if req.POID != "" && req.PO != nil {
		return &core.InputError{Field: "purchase_order", Reason: "requires at most one of po_id or purchase_order"}
	}
	return nil
}

// extract returns the normalised invoice data, calling the extractor for raw text.
func (s *auditService) extract(ctx context.Context, req AuditInvoiceRequest) (*core.ExtractedInvoice, error) {
	var data core.ExtractedInvoice
	if req.Extracted != nil {
		data = *req.Extracted
	} else {
		if s.extractor == nil {
			return nil, ErrExtractorUnavailable
		}
		extracted, err := s.extractor.ExtractInvoice(ctx, req.DocumentText)
		if err != nil {
			return nil, &core.CollaboratorError{Collaborator: "invoice extractor", Err: err}
		}
		data = *extracted
	}
	data.Normalize()
	return &data, nil
}

// resolvePurchaseOrder loads a stored PO by id or returns the inline one.
// Only stored POs yield an id for the audit record.
func (s *auditService) resolvePurchaseOrder(ctx context.Context, req AuditInvoiceRequest) (*core.PurchaseOrder, *string, error) {
	switch {
	case req.POID != "":
		po, err := s.store.GetPurchaseOrder(ctx, req.CallerID, req.POID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, nil, fmt.Errorf("purchase order %s: %w", req.POID, err)
			}
			return nil, nil, fmt.Errorf("failed to load purchase order: %w", err)
		}
		id := po.ID
		return po, &id, nil
	case req.PO != nil:
		po := *req.PO
		po.CallerID = req.CallerID
		return &po, nil, nil
	default:
		return nil, nil, nil
	}
}

// GetAudit returns one of the caller's audits.
func (s *auditService) GetAudit(ctx context.Context, callerID, auditID string) (*core.AuditRecord, error) {
	if callerID == "" {
		return nil, &core.InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	return s.store.GetAudit(ctx, callerID, auditID)
}

// ListAudits returns the caller's most recent audits.
func (s *auditService) ListAudits(ctx context.Context, callerID string, limit int) (*AuditListResult, error) {
	if callerID == "" {
		return nil, &core.InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	if limit <= 0 || limit > core.MaxListedAudits {
		limit = core.MaxListedAudits
	}
	audits, err := s.store.ListAudits(ctx, callerID, limit)
	if err != nil {
		return nil, err
	}
	return &AuditListResult{Audits: audits}, nil
}

// CreatePurchaseOrder validates and stores a purchase order.
func (s *auditService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	if req.CallerID == "" {
		return nil, &core.InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	po := core.PurchaseOrder{
		CallerID:    req.CallerID,
		PONumber:    strings.TrimSpace(req.PONumber),
		Vendor:      strings.TrimSpace(req.Vendor),
		TotalAmount: req.TotalAmount,
		IssueDate:   req.IssueDate,
		Items:       req.Items,
	}
	if po.Items == nil {
		po.Items = []core.LineItem{}
	}
	if err := po.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}
	return &PurchaseOrderResult{PurchaseOrder: created}, nil
}

// GetPurchaseOrder returns one of the caller's purchase orders.
func (s *auditService) GetPurchaseOrder(ctx context.Context, callerID, poID string) (*PurchaseOrderResult, error) {
	if callerID == "" {
		return nil, &core.InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	po, err := s.store.GetPurchaseOrder(ctx, callerID, poID)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}
