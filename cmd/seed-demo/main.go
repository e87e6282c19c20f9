// seed-demo resets the demo caller's data and loads sample purchase orders plus one
// completed invoice, so that auditing a matching invoice shows a duplicate flag.
//
// Usage: go run ./cmd/seed-demo [caller-id]
package main

import (
	"context"
	"log"
	"os"

	"invoice-auditor/internal/core"
	"invoice-auditor/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultCaller = "demo"

func main() {
	_ = godotenv.Load()

	callerID := defaultCaller
	if len(os.Args) > 1 {
		callerID = os.Args[1]
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Printf("Clearing data for caller %q...", callerID)
	for _, stmt := range []string{
		`DELETE FROM audits WHERE caller_id = $1`,
		`DELETE FROM invoices WHERE caller_id = $1`,
		`DELETE FROM purchase_orders WHERE caller_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, callerID); err != nil {
			log.Fatalf("Failed to clear demo data: %v", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	store := core.NewInvoiceStore(pool)

	log.Println("Creating purchase orders...")
	issued := "2024-03-01"
	for _, po := range []core.PurchaseOrder{
		{
			PONumber:    "PO-1182",
			Vendor:      "Acme Office Supplies Ltd",
			TotalAmount: decimal.RequireFromString("660.00"),
			IssueDate:   &issued,
			Items: []core.LineItem{
				{Description: "A4 Copy Paper (box)", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("24.50"), Total: decimal.RequireFromString("245.00")},
				{Description: "Toner Cartridge TN-2420", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("61.25"), Total: decimal.RequireFromString("245.00")},
				{Description: "Desk Organiser", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("30.00"), Total: decimal.RequireFromString("60.00")},
			},
		},
		{
			PONumber:    "PO-1190",
			Vendor:      "Northwind Logistics",
			TotalAmount: decimal.RequireFromString("4200.00"),
			IssueDate:   &issued,
			Items:       []core.LineItem{},
		},
	} {
		po.CallerID = callerID
		created, err := store.CreatePurchaseOrder(ctx, po)
		if err != nil {
			log.Fatalf("Failed to create purchase order %s: %v", po.PONumber, err)
		}
		log.Printf("  %s -> %s", created.PONumber, created.ID)
	}

	log.Println("Creating a completed invoice for duplicate detection...")
	inv, err := store.CreateInvoice(ctx, callerID, "acme-inv-20417.pdf", "application/pdf")
	if err != nil {
		log.Fatalf("Failed to create invoice: %v", err)
	}
	number := "INV-20417"
	if err := store.CompleteInvoice(ctx, inv.ID, core.ExtractedInvoice{
		Vendor:        "Acme Office Supplies Ltd",
		InvoiceNumber: &number,
		Date:          "2024-03-15",
		Total:         decimal.RequireFromString("660.00"),
		Items:         []core.LineItem{},
	}); err != nil {
		log.Fatalf("Failed to complete invoice: %v", err)
	}

	log.Println("Demo data loaded.")
}
