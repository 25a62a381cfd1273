// Package extract turns page content into schema field values: a per-page
// LLM pass produces evidence-backed candidates, which are then synthesized,
// normalized, and validated into the submission record.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ChatMessage is one conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a tool the model may (or must) call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ChatOptions tune a single request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// ToolChoice forces the named tool when set.
	ToolChoice string
}

// ChatRequest is a tool-forcing chat call.
type ChatRequest struct {
	System   string
	Messages []ChatMessage
	Tools    []ToolDefinition
	Options  ChatOptions
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolCallResult is the tool invocation the model produced.
type ToolCallResult struct {
	ToolName string
	Input    json.RawMessage
	Usage    Usage
}

// LLMClient is the model interface the extractor depends on. Tests inject a
// stub; production uses AnthropicClient.
type LLMClient interface {
	ChatWithTools(ctx context.Context, req ChatRequest) (*ToolCallResult, error)
}

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic messages API directly over HTTP.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewAnthropicClient creates a client for the hosted Anthropic API.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: anthropicMessagesURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger.With("component", "llm"),
	}
}

// ChatWithTools implements LLMClient.
func (c *AnthropicClient) ChatWithTools(ctx context.Context, chatReq ChatRequest) (*ToolCallResult, error) {
	opts := chatReq.Options
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}

	reqBody := map[string]any{
		"model":       opts.Model,
		"max_tokens":  opts.MaxTokens,
		"temperature": opts.Temperature,
		"messages":    chatReq.Messages,
	}
	if chatReq.System != "" {
		reqBody["system"] = chatReq.System
	}
	if len(chatReq.Tools) > 0 {
		reqBody["tools"] = chatReq.Tools
	}
	if opts.ToolChoice != "" {
		reqBody["tool_choice"] = map[string]string{"type": "tool", "name": opts.ToolChoice}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("LLM API error", "status_code", resp.StatusCode, "response", string(body))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return parseAnthropicToolResponse(body)
}

// parseAnthropicToolResponse extracts the tool_use block from an Anthropic
// messages response.
func parseAnthropicToolResponse(body []byte) (*ToolCallResult, error) {
	var resp struct {
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      Usage  `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" {
			return &ToolCallResult{
				ToolName: block.Name,
				Input:    block.Input,
				Usage:    resp.Usage,
			}, nil
		}
	}

	return nil, fmt.Errorf("no tool_use block in response (stop_reason %q)", resp.StopReason)
}
