package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldset/fieldset-api/internal/content"
	"github.com/fieldset/fieldset-api/internal/models"
)

// extractToolName is the single tool the model is forced to call.
const extractToolName = "extract_fields"

// systemPrompt pins down the extraction contract for every page.
const systemPrompt = `You are a precise data extraction assistant. You read one web page and report values for a fixed list of fields.

Rules:
- Only report fields from the provided field list. Never invent fields.
- Every reported value must be supported by a verbatim snippet copied from the page text.
- Report a confidence between 0 and 1 for each value.
- If the page contains no evidence for a field, skip that field entirely. Never guess or fabricate.
- For enum fields, match the listed options case-insensitively and report the matching option.
- Report each field at most once per page.`

// buildUserMessage renders the field table followed by the page content.
// Body text is truncated at maxBodyChars on a word boundary.
func buildUserMessage(fields []models.FieldDefinition, page content.ExtractedContent, maxBodyChars int) string {
	var b strings.Builder

	b.WriteString("Fields to extract:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Key, f.Type, f.Label)
		if f.Instructions != "" {
			fmt.Fprintf(&b, "  Instructions: %s\n", f.Instructions)
		}
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, "  Options: %s\n", strings.Join(f.Options, ", "))
		}
		if f.Regex != "" {
			fmt.Fprintf(&b, "  Regex: %s\n", f.Regex)
		}
	}

	fmt.Fprintf(&b, "\nPage URL: %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", page.Title)
	}
	if page.MetaDescription != "" {
		fmt.Fprintf(&b, "Meta description: %s\n", page.MetaDescription)
	}
	if len(page.Headings) > 0 {
		fmt.Fprintf(&b, "Headings: %s\n", strings.Join(page.Headings, " | "))
	}
	fmt.Fprintf(&b, "\nPage text:\n%s\n", truncateOnWordBoundary(page.BodyText, maxBodyChars))

	return b.String()
}

// truncateOnWordBoundary cuts s to at most limit characters without splitting
// a word, appending a truncation marker when anything was dropped.
func truncateOnWordBoundary(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + " [...truncated]"
}

// buildExtractTool declares the extract_fields tool with the schema keys as
// an enum, so the model cannot report unknown fields by construction.
func buildExtractTool(fields []models.FieldDefinition) ToolDefinition {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extractions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"key": map[string]any{
							"type": "string",
							"enum": keys,
						},
						"value": map[string]any{
							"description": "The extracted value, typed per the field definition",
						},
						"confidence": map[string]any{
							"type":    "number",
							"minimum": 0,
							"maximum": 1,
						},
						"snippet": map[string]any{
							"type":        "string",
							"description": "Verbatim supporting text copied from the page",
						},
						"reason": map[string]any{
							"type": "string",
						},
					},
					"required": []string{"key", "value", "confidence", "snippet"},
				},
			},
		},
		"required": []string{"extractions"},
	}

	raw, _ := json.Marshal(schema)
	return ToolDefinition{
		Name:        extractToolName,
		Description: "Report the field values found on this page with supporting evidence.",
		InputSchema: raw,
	}
}
