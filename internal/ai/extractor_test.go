package ai

import (
	"context"
	"strings"
	"testing"

	"invoice-auditor/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	inv, err := parseExtraction(`{
		"vendor": " ",
		"invoice_number": "INV-9",
		"date": "2024-03-15",
		"total": "660.00",
		"subtotal": "550.00",
		"items": [{"description": "Paper", "quantity": "10", "unit_price": "55", "total": "550"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, unknownVendor, inv.Vendor)
	assert.Equal(t, "660", inv.Total.String())
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Paper", inv.Items[0].Description)
}

func TestParseExtraction_Errors(t *testing.T) {
	_, err := parseExtraction(`not json`)
	assert.Error(t, err)

	_, err = parseExtraction(`{"vendor": "Acme", "date": "15/03/2024", "total": "1"}`)
	assert.True(t, core.IsInputError(err), "got %v", err)
}

func TestGenerateSchema(t *testing.T) {
	schema, err := schemaAsMap()
	require.NoError(t, err)

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"vendor", "invoice_number", "date", "due_date", "total", "subtotal", "tax", "items"} {
		assert.Contains(t, props, key)
	}

	total := props["total"].(map[string]any)
	assert.Equal(t, "string", total["type"], "decimals are strings")
	subtotal := props["subtotal"].(map[string]any)
	assert.Equal(t, "string", subtotal["type"])

	required, _ := schema["required"].([]any)
	assert.Contains(t, required, "vendor")
	assert.NotContains(t, required, "invoice_number")
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("ACME INVOICE TOTAL 10.00")
	assert.True(t, strings.HasSuffix(p, "ACME INVOICE TOTAL 10.00"))
	assert.Contains(t, p, "YYYY-MM-DD")
}

func TestExtractInvoice_EmptyDocument(t *testing.T) {
	_, err := NewExtractor("test-key", "").ExtractInvoice(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
