// verify-extractor sends a sample invoice to the OpenAI extractor and audits the
// result offline. It is a smoke test for OPENAI_API_KEY and the extraction schema.
//
// Usage: go run ./cmd/verify-extractor
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"invoice-auditor/internal/ai"
	"invoice-auditor/internal/core"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const sampleInvoice = `
ACME OFFICE SUPPLIES LTD
14 Harbour Road, Leeds

INVOICE #INV-20417
Date: 2024-03-15        Due: 2024-04-14

Description                 Qty   Unit     Amount
A4 Copy Paper (box)          10   24.50    245.00
Toner Cartridge TN-2420       4   61.25    245.00
Desk Organiser                2   30.00     60.00

Subtotal                                   550.00
VAT 20%                                    110.00
TOTAL DUE                                  660.00
`

func main() {
	_ = godotenv.Load() // Load .env if present

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	extractor := ai.NewExtractor(apiKey, os.Getenv("OPENAI_MODEL"))
	invoice, err := extractor.ExtractInvoice(ctx, sampleInvoice)
	if err != nil {
		log.Fatalf("Extraction error: %v", err)
	}

	fmt.Printf("--- EXTRACTED ---\n")
	fmt.Printf("Vendor:   %s\n", invoice.Vendor)
	fmt.Printf("Date:     %s\n", invoice.Date)
	fmt.Printf("Total:    %s\n", invoice.Total.StringFixed(2))
	for _, item := range invoice.Items {
		fmt.Printf("- %-28s %6s x %8s = %8s\n", item.Description, item.Quantity, item.UnitPrice.StringFixed(2), item.Total.StringFixed(2))
	}

	po := &core.PurchaseOrder{
		PONumber:    "PO-1182",
		Vendor:      "Acme Office Supplies Ltd",
		TotalAmount: decimal.RequireFromString("660.00"),
		Items:       make([]core.LineItem, 3),
	}
	result, err := core.NewAuditor(core.DefaultAuditConfig(), nil).RunValidation(ctx, *invoice, "verify-extractor", po)
	if err != nil {
		log.Fatalf("Audit error: %v", err)
	}

	fmt.Printf("\n--- AUDIT ---\n")
	fmt.Printf("Confidence: %d (%s)\n", result.Confidence, result.RiskLevel)
	for _, f := range result.Flags {
		fmt.Printf("- [%s/%s] %s\n", f.Severity, f.Kind, f.Message)
	}
}
