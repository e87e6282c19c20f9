package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type invoiceStore struct {
	pool *pgxpool.Pool
}

// NewInvoiceStore constructs an InvoiceStore backed by PostgreSQL.
func NewInvoiceStore(pool *pgxpool.Pool) InvoiceStore {
	return &invoiceStore{pool: pool}
}

// FindCompletedInvoices matches extracted vendor, date and total exactly.
// Totals compare as numerics so "1000" and "1000.00" are the same value.
func (s *invoiceStore) FindCompletedInvoices(ctx context.Context, callerID, vendor, date string, total decimal.Decimal, limit int) ([]InvoiceMatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, file_name, created_at
		FROM invoices
		WHERE caller_id = $1
		  AND status = 'completed'
		  AND extracted_data->>'vendor' = $2
		  AND extracted_data->>'date' = $3
		  AND (extracted_data->>'total')::numeric = $4
		ORDER BY created_at DESC
		LIMIT $5`,
		callerID, vendor, date, total, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find completed invoices: %w", err)
	}
	defer rows.Close()

	var matches []InvoiceMatch
	for rows.Next() {
		var m InvoiceMatch
		if err := rows.Scan(&m.ID, &m.FileName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find completed invoices: %w", err)
	}
	return matches, nil
}

// CreateInvoice records a new invoice in PROCESSING state.
func (s *invoiceStore) CreateInvoice(ctx context.Context, callerID, fileName, fileType string) (*Invoice, error) {
	inv := Invoice{
		ID:       uuid.NewString(),
		CallerID: callerID,
		FileName: fileName,
		FileType: fileType,
		Status:   InvoiceStatusProcessing,
	}
	if err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, caller_id, file_name, file_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		inv.ID, callerID, fileName, fileType, string(inv.Status),
	).Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	return &inv, nil
}

// CompleteInvoice stores the extracted data and marks a PROCESSING invoice COMPLETED.
func (s *invoiceStore) CompleteInvoice(ctx context.Context, invoiceID string, data ExtractedInvoice) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	return s.transition(ctx, invoiceID, InvoiceStatusCompleted, payload)
}

// FailInvoice marks a PROCESSING invoice FAILED.
func (s *invoiceStore) FailInvoice(ctx context.Context, invoiceID string) error {
	return s.transition(ctx, invoiceID, InvoiceStatusFailed, nil)
}

func (s *invoiceStore) transition(ctx context.Context, invoiceID string, to InvoiceStatus, extracted []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $1,
		    extracted_data = COALESCE($2::jsonb, extracted_data),
		    updated_at = NOW()
		WHERE id = $3 AND status = 'processing'`,
		string(to), extracted, invoiceID,
	)
	if err != nil {
		return fmt.Errorf("mark invoice %s %s: %w", invoiceID, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s is not processing: %w", invoiceID, ErrNotFound)
	}
	return nil
}

// CreatePurchaseOrder stores a purchase order owned by po.CallerID.
func (s *invoiceStore) CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (*PurchaseOrder, error) {
	if po.CallerID == "" {
		return nil, &InputError{Field: "caller_id", Reason: "must not be empty"}
	}
	if err := po.Validate(); err != nil {
		return nil, err
	}
	items := po.Items
	if items == nil {
		items = []LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal PO items: %w", err)
	}

	po.ID = uuid.NewString()
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, `
		INSERT INTO purchase_orders (id, caller_id, po_number, vendor, total_amount, issue_date, items)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7)
		RETURNING created_at`,
		po.ID, po.CallerID, po.PONumber, po.Vendor, po.TotalAmount, po.IssueDate, itemsJSON,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}
	po.CreatedAt = &createdAt
	return &po, nil
}

// GetPurchaseOrder returns the caller's purchase order, or ErrNotFound.
func (s *invoiceStore) GetPurchaseOrder(ctx context.Context, callerID, poID string) (*PurchaseOrder, error) {
	if _, err := uuid.Parse(poID); err != nil {
		return nil, fmt.Errorf("purchase order %q: %w", poID, ErrNotFound)
	}
	var (
		po        PurchaseOrder
		itemsJSON []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, caller_id, po_number, vendor, total_amount, issue_date::text, items, created_at
		FROM purchase_orders
		WHERE id = $1 AND caller_id = $2`,
		poID, callerID,
	).Scan(&po.ID, &po.CallerID, &po.PONumber, &po.Vendor, &po.TotalAmount, &po.IssueDate, &itemsJSON, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %s: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch purchase order %s: %w", poID, err)
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &po.Items); err != nil {
			return nil, fmt.Errorf("decode items of purchase order %s: %w", poID, err)
		}
	}
	po.CreatedAt = &createdAt
	return &po, nil
}

// SaveAudit stores an audit outcome and returns it with ID and CreatedAt set.
func (s *invoiceStore) SaveAudit(ctx context.Context, rec AuditRecord) (*AuditRecord, error) {
	flagsJSON, err := json.Marshal(rec.Flags)
	if err != nil {
		return nil, fmt.Errorf("marshal audit flags: %w", err)
	}
	resultsJSON, err := json.Marshal(rec.ValidationResults)
	if err != nil {
		return nil, fmt.Errorf("marshal validation results: %w", err)
	}

	rec.ID = uuid.NewString()
	if err := s.pool.QueryRow(ctx, `
		INSERT INTO audits (id, caller_id, invoice_id, po_id, confidence_score, risk_level,
		                    flags, validation_results, degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		rec.ID, rec.CallerID, rec.InvoiceID, rec.POID, rec.ConfidenceScore, string(rec.RiskLevel),
		flagsJSON, resultsJSON, rec.Degraded,
	).Scan(&rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return &rec, nil
}

const auditColumns = `
	id::text, caller_id, invoice_id::text, po_id::text, confidence_score, risk_level,
	flags, validation_results, degraded, created_at`

// GetAudit returns the caller's audit, or ErrNotFound.
func (s *invoiceStore) GetAudit(ctx context.Context, callerID, auditID string) (*AuditRecord, error) {
	if _, err := uuid.Parse(auditID); err != nil {
		return nil, fmt.Errorf("audit %q: %w", auditID, ErrNotFound)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+auditColumns+`
		FROM audits
		WHERE id = $1 AND caller_id = $2`,
		auditID, callerID,
	)
	rec, err := scanAudit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit %s: %w", auditID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch audit %s: %w", auditID, err)
	}
	return rec, nil
}

// ListAudits returns the caller's audits, newest first.
func (s *invoiceStore) ListAudits(ctx context.Context, callerID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > MaxListedAudits {
		limit = MaxListedAudits
	}
	rows, err := s.pool.Query(ctx, `SELECT `+auditColumns+`
		FROM audits
		WHERE caller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		callerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	audits := []AuditRecord{}
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return audits, nil
}

func scanAudit(row pgx.Row) (*AuditRecord, error) {
	var (
		rec                    AuditRecord
		riskLevel              string
		flagsJSON, resultsJSON []byte
	)
	if err := row.Scan(&rec.ID, &rec.CallerID, &rec.InvoiceID, &rec.POID, &rec.ConfidenceScore, &riskLevel,
		&flagsJSON, &resultsJSON, &rec.Degraded, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.RiskLevel = RiskLevel(riskLevel)
	if err := json.Unmarshal(flagsJSON, &rec.Flags); err != nil {
		return nil, fmt.Errorf("decode audit flags: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &rec.ValidationResults); err != nil {
		return nil, fmt.Errorf("decode validation results: %w", err)
	}
	return &rec, nil
}
