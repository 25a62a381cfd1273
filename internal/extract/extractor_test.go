package extract

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldset/fieldset-api/internal/content"
	"github.com/fieldset/fieldset-api/internal/models"
)

// stubLLM returns a canned tool result and records the last request.
type stubLLM struct {
	result  *ToolCallResult
	err     error
	lastReq ChatRequest
	calls   int
}

func (s *stubLLM) ChatWithTools(_ context.Context, req ChatRequest) (*ToolCallResult, error) {
	s.lastReq = req
	s.calls++
	return s.result, s.err
}

func toolInput(t *testing.T, extractions ...map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"extractions": extractions})
	require.NoError(t, err)
	return raw
}

func testPage(words int) content.ExtractedContent {
	body := ""
	for i := 0; i < words; i++ {
		body += "word "
	}
	return content.ExtractedContent{
		URL:       "https://example.com/about",
		Title:     "About",
		BodyText:  body,
		WordCount: words,
		FetchedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestExtractPageSkipsThinPages(t *testing.T) {
	stub := &stubLLM{}
	e := NewPageExtractor(stub, PageExtractorConfig{MinWordCount: 10}, nil)

	got, err := e.ExtractPage(context.Background(), sampleFields(), testPage(5))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, stub.calls, "thin pages should not reach the model")
}

func TestExtractPageForcesTool(t *testing.T) {
	stub := &stubLLM{result: &ToolCallResult{ToolName: extractToolName, Input: toolInput(t)}}
	e := NewPageExtractor(stub, PageExtractorConfig{Model: "test-model"}, nil)

	_, err := e.ExtractPage(context.Background(), sampleFields(), testPage(50))
	require.NoError(t, err)

	assert.Equal(t, "extract_fields", stub.lastReq.Options.ToolChoice)
	assert.Equal(t, "test-model", stub.lastReq.Options.Model)
	require.Len(t, stub.lastReq.Tools, 1)
	assert.NotEmpty(t, stub.lastReq.System)
}

func TestExtractPagePropagatesLLMError(t *testing.T) {
	stub := &stubLLM{err: errors.New("rate limited")}
	e := NewPageExtractor(stub, PageExtractorConfig{}, nil)

	_, err := e.ExtractPage(context.Background(), sampleFields(), testPage(50))
	assert.Error(t, err)
}

func TestExtractPageAttachesPageEvidence(t *testing.T) {
	stub := &stubLLM{result: &ToolCallResult{
		ToolName: extractToolName,
		Input: toolInput(t, map[string]any{
			"key": "company_name", "value": "Acme", "confidence": 0.9, "snippet": "Acme Corp",
		}),
	}}
	e := NewPageExtractor(stub, PageExtractorConfig{}, nil)

	got, err := e.ExtractPage(context.Background(), sampleFields(), testPage(50))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/about", got[0].PageURL)
	assert.Equal(t, "About", got[0].PageTitle)
	assert.False(t, got[0].RetrievedAt.IsZero())
}

func TestParseCandidatesDropsBadEntries(t *testing.T) {
	fields := sampleFields()
	input := toolInput(t,
		map[string]any{"key": "company_name", "value": "Acme", "confidence": 0.9, "snippet": "Acme Corp"},
		map[string]any{"key": "not_in_schema", "value": "x", "confidence": 0.9, "snippet": "x"},
		map[string]any{"key": "phone", "value": "555", "confidence": 0.9, "snippet": "   "},
	)

	got := parseCandidates(input, fields, "https://example.com/")
	require.Len(t, got, 1)
	assert.Equal(t, "company_name", got[0].FieldKey)
}

func TestParseCandidatesMalformedInput(t *testing.T) {
	assert.Nil(t, parseCandidates(json.RawMessage(`{"extractions": "nope"}`), sampleFields(), "u"))
	assert.Nil(t, parseCandidates(json.RawMessage(`not json`), sampleFields(), "u"))
}

func TestCoerceByType(t *testing.T) {
	num := &models.FieldDefinition{Key: "n", Type: models.FieldTypeNumber}
	boolean := &models.FieldDefinition{Key: "b", Type: models.FieldTypeBoolean}
	enum := &models.FieldDefinition{Key: "e", Type: models.FieldTypeEnum, Options: []string{"SaaS", "Retail"}}
	arr := &models.FieldDefinition{Key: "a", Type: models.FieldTypeStringArray}
	str := &models.FieldDefinition{Key: "s", Type: models.FieldTypeString}

	tests := []struct {
		name  string
		field *models.FieldDefinition
		raw   string
		want  any
		ok    bool
	}{
		{"number from json number", num, `12.5`, 12.5, true},
		{"number from numeric string", num, `"42"`, 42.0, true},
		{"number from garbage", num, `"many"`, nil, false},
		{"bool from json bool", boolean, `true`, true, true},
		{"bool from yes", boolean, `"Yes"`, true, true},
		{"bool from no", boolean, `"no"`, false, true},
		{"bool from garbage", boolean, `"maybe"`, nil, false},
		{"enum case-insensitive", enum, `"saas"`, "SaaS", true},
		{"enum not an option", enum, `"Finance"`, nil, false},
		{"array from json array", arr, `["a"," b "]`, []string{"a", "b"}, true},
		{"array from comma string", arr, `"a, b, ,c"`, []string{"a", "b", "c"}, true},
		{"string from string", str, `"hello"`, "hello", true},
		{"string from number", str, `7`, "7", true},
		{"null dropped", str, `null`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceValue(json.RawMessage(tt.raw), tt.field)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(math.NaN()))
	assert.Equal(t, 0.0, clampConfidence(math.Inf(1)))
	assert.Equal(t, 0.0, clampConfidence(-0.5))
	assert.Equal(t, 1.0, clampConfidence(1.7))
	assert.Equal(t, 0.42, clampConfidence(0.42))
}

func TestParseAnthropicToolResponse(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "thinking..."},
			{"type": "tool_use", "name": "extract_fields", "input": {"extractions": []}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 120, "output_tokens": 30}
	}`)

	got, err := parseAnthropicToolResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "extract_fields", got.ToolName)
	assert.Equal(t, 120, got.Usage.InputTokens)
	assert.Equal(t, 30, got.Usage.OutputTokens)

	_, err = parseAnthropicToolResponse([]byte(`{"content":[{"type":"text","text":"no tool"}],"stop_reason":"end_turn"}`))
	assert.Error(t, err)
}
