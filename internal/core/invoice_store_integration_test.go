package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"invoice-auditor/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "connect to test database")

	schema, err := os.ReadFile("../../migrations/001_invoice_audit.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err, "apply schema")

	_, err = pool.Exec(ctx, `TRUNCATE TABLE audits, invoices, purchase_orders CASCADE`)
	require.NoError(t, err, "clean test database")
	return pool
}

func completedInvoice(t *testing.T, store core.InvoiceStore, callerID string, data core.ExtractedInvoice) *core.Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := store.CreateInvoice(ctx, callerID, "inv.pdf", "application/pdf")
	require.NoError(t, err)
	require.NoError(t, store.CompleteInvoice(ctx, inv.ID, data))
	return inv
}

func TestInvoiceStore_FindCompletedInvoices(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	store := core.NewInvoiceStore(pool)

	data := core.ExtractedInvoice{Vendor: "Acme Corp", Date: "2024-01-10", Total: dec("1000.00"), Items: []core.LineItem{}}
	first := completedInvoice(t, store, "caller-1", data)
	second := completedInvoice(t, store, "caller-1", data)
	completedInvoice(t, store, "caller-2", data)

	// Still processing: invisible.
	_, err := store.CreateInvoice(ctx, "caller-1", "pending.pdf", "application/pdf")
	require.NoError(t, err)

	// Failed: invisible.
	failed, err := store.CreateInvoice(ctx, "caller-1", "failed.pdf", "application/pdf")
	require.NoError(t, err)
	require.NoError(t, store.FailInvoice(ctx, failed.ID))

	t.Run("matches exact fingerprint newest first", func(t *testing.T) {
		matches, err := store.FindCompletedInvoices(ctx, "caller-1", "Acme Corp", "2024-01-10", dec("1000"), 5)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, second.ID, matches[0].ID)
		assert.Equal(t, first.ID, matches[1].ID)
	})

	t.Run("limit", func(t *testing.T) {
		matches, err := store.FindCompletedInvoices(ctx, "caller-1", "Acme Corp", "2024-01-10", dec("1000"), 1)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("no fuzzy matching", func(t *testing.T) {
		for _, q := range []struct{ vendor, date, total string }{
			{"Acme Corp.", "2024-01-10", "1000"},
			{"Acme Corp", "2024-01-11", "1000"},
			{"Acme Corp", "2024-01-10", "1000.01"},
		} {
			matches, err := store.FindCompletedInvoices(ctx, "caller-1", q.vendor, q.date, dec(q.total), 5)
			require.NoError(t, err)
			assert.Empty(t, matches, "%+v", q)
		}
	})

	t.Run("completed invoices cannot transition again", func(t *testing.T) {
		assert.ErrorIs(t, store.FailInvoice(ctx, first.ID), core.ErrNotFound)
	})
}

func TestInvoiceStore_PurchaseOrdersAndAudits(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	store := core.NewInvoiceStore(pool)

	issued := "2024-01-02"
	po, err := store.CreatePurchaseOrder(ctx, core.PurchaseOrder{
		CallerID:    "caller-1",
		PONumber:    "PO-1",
		Vendor:      "Acme Corp",
		TotalAmount: dec("1000.00"),
		IssueDate:   &issued,
		Items:       []core.LineItem{{Description: "Widgets", Quantity: dec("4"), UnitPrice: dec("250"), Total: dec("1000")}},
	})
	require.NoError(t, err)

	t.Run("purchase order is caller scoped", func(t *testing.T) {
		got, err := store.GetPurchaseOrder(ctx, "caller-1", po.ID)
		require.NoError(t, err)
		assert.Equal(t, "PO-1", got.PONumber)
		assert.True(t, got.TotalAmount.Equal(dec("1000")))
		require.NotNil(t, got.IssueDate)
		assert.Equal(t, issued, *got.IssueDate)
		require.Len(t, got.Items, 1)

		_, err = store.GetPurchaseOrder(ctx, "caller-2", po.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = store.GetPurchaseOrder(ctx, "caller-1", "not-a-uuid")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	inv := completedInvoice(t, store, "caller-1", core.ExtractedInvoice{Vendor: "Acme Corp", Date: "2024-01-10", Total: dec("1000"), Items: []core.LineItem{}})

	auditor := core.NewAuditor(core.DefaultAuditConfig(), store, core.WithClock(func() time.Time { return today }))
	var ids []string
	for i := 0; i < 3; i++ {
		result, err := auditor.RunValidation(ctx, core.ExtractedInvoice{Vendor: "Acme Corp", Date: "2024-01-10", Total: dec("1000")}, "caller-1", po)
		require.NoError(t, err)
		poID := po.ID
		rec, err := store.SaveAudit(ctx, core.NewAuditRecord("caller-1", inv.ID, &poID, result))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("get audit round trips flags", func(t *testing.T) {
		rec, err := store.GetAudit(ctx, "caller-1", ids[0])
		require.NoError(t, err)
		assert.Equal(t, inv.ID, rec.InvoiceID)
		require.NotNil(t, rec.POID)
		assert.Equal(t, po.ID, *rec.POID)
		// Duplicate of the completed invoice (high), round amount (low), item count (low).
		assert.Equal(t, 79, rec.ConfidenceScore)
		assert.Equal(t, core.RiskHigh, rec.RiskLevel)
		require.Len(t, rec.Flags, 3)
		assert.Equal(t, core.FlagDuplicate, rec.Flags[0].Kind)
		assert.False(t, rec.ValidationResults.Checks.NoDuplicate)

		_, err = store.GetAudit(ctx, "caller-2", ids[0])
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list audits newest first", func(t *testing.T) {
		list, err := store.ListAudits(ctx, "caller-1", 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, ids[2], list[0].ID)
		assert.Equal(t, ids[1], list[1].ID)

		none, err := store.ListAudits(ctx, "caller-2", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
