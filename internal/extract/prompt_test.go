package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldset/fieldset-api/internal/content"
	"github.com/fieldset/fieldset-api/internal/models"
)

func sampleFields() []models.FieldDefinition {
	return []models.FieldDefinition{
		{Key: "company_name", Label: "Company name", Type: models.FieldTypeString, Instructions: "Use the legal name"},
		{Key: "industry", Label: "Industry", Type: models.FieldTypeEnum, Options: []string{"SaaS", "Retail"}},
		{Key: "phone", Label: "Phone number", Type: models.FieldTypeString, Regex: `^\+?[\d\s()-]+$`},
	}
}

func TestBuildUserMessage(t *testing.T) {
	msg := buildUserMessage(sampleFields(), content.ExtractedContent{
		URL:             "https://example.com/about",
		Title:           "About Acme",
		MetaDescription: "Acme does things",
		Headings:        []string{"Who we are", "Contact"},
		BodyText:        "Acme Corp was founded in 1999.",
	}, 12000)

	assert.Contains(t, msg, "- company_name (string): Company name")
	assert.Contains(t, msg, "Instructions: Use the legal name")
	assert.Contains(t, msg, "Options: SaaS, Retail")
	assert.Contains(t, msg, `Regex: ^\+?[\d\s()-]+$`)
	assert.Contains(t, msg, "Page URL: https://example.com/about")
	assert.Contains(t, msg, "Title: About Acme")
	assert.Contains(t, msg, "Headings: Who we are | Contact")
	assert.Contains(t, msg, "Acme Corp was founded in 1999.")
}

func TestBuildUserMessageOmitsEmptyPieces(t *testing.T) {
	msg := buildUserMessage(sampleFields(), content.ExtractedContent{
		URL:      "https://example.com/",
		BodyText: "text",
	}, 12000)

	assert.NotContains(t, msg, "Title:")
	assert.NotContains(t, msg, "Meta description:")
	assert.NotContains(t, msg, "Headings:")
}

func TestTruncateOnWordBoundary(t *testing.T) {
	assert.Equal(t, "short", truncateOnWordBoundary("short", 100))

	long := strings.Repeat("word ", 100)
	got := truncateOnWordBoundary(long, 52)
	assert.True(t, strings.HasSuffix(got, " [...truncated]"), "got %q", got)
	trimmed := strings.TrimSuffix(got, " [...truncated]")
	assert.LessOrEqual(t, len(trimmed), 52)
	assert.False(t, strings.HasSuffix(trimmed, "wor"), "should not split a word")

	// No spaces to break on: hard cut.
	got = truncateOnWordBoundary(strings.Repeat("x", 100), 10)
	assert.True(t, strings.HasSuffix(got, " [...truncated]"))
}

func TestBuildExtractTool(t *testing.T) {
	tool := buildExtractTool(sampleFields())
	require.Equal(t, "extract_fields", tool.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))

	props := schema["properties"].(map[string]any)
	items := props["extractions"].(map[string]any)["items"].(map[string]any)
	keyProp := items["properties"].(map[string]any)["key"].(map[string]any)

	enum := keyProp["enum"].([]any)
	assert.ElementsMatch(t, []any{"company_name", "industry", "phone"}, enum)

	required := items["required"].([]any)
	assert.ElementsMatch(t, []any{"key", "value", "confidence", "snippet"}, required)
}
