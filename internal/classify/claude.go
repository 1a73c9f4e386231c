package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultAPIURL    = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// ClaudeBackend implements Backend against the Claude Messages API.
type ClaudeBackend struct {
	apiKey    string
	model     string
	maxTokens int
	apiURL    string
	client    *http.Client
}

// NewClaudeBackend creates a backend client. Empty model and non-positive
// maxTokens fall back to defaults.
func NewClaudeBackend(apiKey, model string, maxTokens int) *ClaudeBackend {
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ClaudeBackend{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		apiURL:    defaultAPIURL,
		client:    &http.Client{},
	}
}

// NewClaudeBackendWithURL creates a backend client against a non-default
// endpoint. Used by tests and API-compatible proxies.
func NewClaudeBackendWithURL(apiKey, model string, maxTokens int, apiURL string) *ClaudeBackend {
	b := NewClaudeBackend(apiKey, model, maxTokens)
	b.apiURL = apiURL
	return b
}

// Send performs a single non-streaming Messages API call and returns the
// concatenated text content. All failures come back wrapped in a
// BackendError.
func (b *ClaudeBackend) Send(ctx context.Context, text, systemInstruction string) (string, error) {
	reqBody := apiRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System:    systemInstruction,
		Messages: []apiMessage{
			{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: text}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &BackendError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, b.apiURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", &BackendError{Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &BackendError{Err: fmt.Errorf("calling Claude API: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", &BackendError{Err: fmt.Errorf(
				"API error (%d): %s", resp.StatusCode, apiErr.Error.Message,
			)}
		}
		return "", &BackendError{Err: fmt.Errorf(
			"API error (%d): %s", resp.StatusCode, string(respBody),
		)}
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &BackendError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	var textParts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	if len(textParts) == 0 {
		return "", &BackendError{Err: fmt.Errorf("response contained no text content")}
	}

	return strings.Join(textParts, ""), nil
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
