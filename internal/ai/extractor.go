package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"invoice-auditor/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"
)

// unknownVendor replaces an empty vendor in model output.
const unknownVendor = "Unknown Vendor"

// maxDocumentChars bounds the document text sent to the model.
const maxDocumentChars = 60000

var ErrEmptyDocument = errors.New("document text is empty")

// Extractor turns invoice document text into structured invoice fields.
type Extractor struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewExtractor builds an Extractor using the OpenAI Responses API.
// An empty model selects gpt-4o-mini.
func NewExtractor(apiKey, model string, opts ...option.RequestOption) *Extractor {
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Extractor{client: &client, model: shared.ResponsesModel(model)}
}

// ExtractInvoice asks the model for the invoice fields in documentText.
// The result is normalised and validated; a malformed answer is an error.
func (e *Extractor) ExtractInvoice(ctx context.Context, documentText string) (*core.ExtractedInvoice, error) {
	documentText = strings.TrimSpace(documentText)
	if documentText == "" {
		return nil, ErrEmptyDocument
	}
	if len(documentText) > maxDocumentChars {
		documentText = documentText[:maxDocumentChars]
	}

	schemaMap, err := schemaAsMap()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: e.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(documentText)),
		},
		Temperature: param.NewOpt(0.0),
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "extracted_invoice",
					Strict:      param.NewOpt(false),
					Schema:      schemaMap,
					Description: param.NewOpt("Structured fields extracted from a vendor invoice"),
				},
			},
		},
	}

	resp, err := e.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	return parseExtraction(content)
}

func buildPrompt(documentText string) string {
	return fmt.Sprintf(`You are an expert invoice data extractor. Extract structured data from the invoice text below.

Rules:
1. Amounts are plain decimal strings with no currency symbols or thousands separators (e.g. "1250.00").
2. Dates use YYYY-MM-DD.
3. Omit fields that are not printed on the invoice; do not guess.
4. List line items in document order. Use an empty list if there are none.
5. "total" is the amount due including tax.

Invoice text:
%s`, documentText)
}

// parseExtraction decodes the model's JSON answer into a validated invoice.
func parseExtraction(content string) (*core.ExtractedInvoice, error) {
	var inv core.ExtractedInvoice
	if err := json.Unmarshal([]byte(content), &inv); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %w", err)
	}
	inv.Normalize()
	if inv.Vendor == "" {
		inv.Vendor = unknownVendor
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("extraction validation failed: %w", err)
	}
	return &inv, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// generateSchema reflects the JSON schema of core.ExtractedInvoice.
// Decimals are described as strings, matching their JSON encoding.
func generateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	var v core.ExtractedInvoice
	return reflector.Reflect(v)
}

func schemaAsMap() (map[string]any, error) {
	schemaJSON, err := json.Marshal(generateSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
