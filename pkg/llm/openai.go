package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements Provider against /v1/chat/completions.
type OpenAIProvider struct {
	config     Config
	httpClient *http.Client
	name       string
}

// NewOpenAIProvider creates a provider. An empty APIKey is allowed for local
// servers that do not authenticate.
func NewOpenAIProvider(config Config) *OpenAIProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		name:       fmt.Sprintf("openai-%s", config.Model),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// Complete sends a chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	chatReq := chatRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.config.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: ErrUnavailable, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Code: ErrTimeout, Message: "request timeout"}
		}
		return nil, &Error{Code: ErrUnavailable, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, StatusError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("parse response: %v", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &Error{Code: ErrParseFailure, Message: "no choices in response"}
	}
	content := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, &Error{Code: ErrEmptyOutput, Message: "empty completion"}
	}

	return &CompletionResponse{
		Content:      content,
		Model:        chatResp.Model,
		FinishReason: chatResp.Choices[0].FinishReason,
		Latency:      time.Since(start),
		TokensUsed: TokenUsage{
			Prompt:     chatResp.Usage.PromptTokens,
			Completion: chatResp.Usage.CompletionTokens,
			Total:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// StatusError maps a non-200 response from an OpenAI-compatible endpoint to an *Error.
func StatusError(status int, body []byte) *Error {
	msg := fmt.Sprintf("HTTP %d: %s", status, truncate(string(body), 512))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Code: ErrUnauthorized, StatusCode: status, Message: msg}
	case status == http.StatusTooManyRequests:
		return &Error{Code: ErrRateLimit, StatusCode: status, Message: msg}
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return &Error{Code: ErrTimeout, StatusCode: status, Message: msg}
	default:
		return &Error{Code: ErrUnavailable, StatusCode: status, Message: msg}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
