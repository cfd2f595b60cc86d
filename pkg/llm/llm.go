// Package llm is a client for OpenAI-compatible chat-completion services.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider generates text from a prompt.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-gpt-3.5-turbo").
	Name() string

	// Complete sends a completion request and returns the raw response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest represents a request to the LLM.
type CompletionRequest struct {
	// Prompt is the user message.
	Prompt string

	// SystemPrompt is an optional system-level instruction.
	SystemPrompt string

	// MaxTokens limits response length (0 = provider default).
	MaxTokens int

	// Temperature controls randomness (0 = provider default).
	Temperature float32
}

// CompletionResponse represents a response from the LLM.
type CompletionResponse struct {
	Content      string
	Model        string
	FinishReason string
	Latency      time.Duration
	TokensUsed   TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// Config configures an OpenAI-compatible provider.
type Config struct {
	// BaseURL is the API root without the /v1 suffix.
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns settings for the public OpenAI API.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-3.5-turbo",
		Temperature: 0.7,
		MaxTokens:   1000,
		Timeout:     60 * time.Second,
	}
}

// ErrorCode identifies the type of LLM error.
type ErrorCode string

const (
	ErrTimeout      ErrorCode = "timeout"
	ErrUnavailable  ErrorCode = "unavailable"
	ErrRateLimit    ErrorCode = "rate_limit"
	ErrUnauthorized ErrorCode = "unauthorized"
	ErrParseFailure ErrorCode = "parse_failure"
	ErrEmptyOutput  ErrorCode = "empty_output"
)

// Error represents an error from the LLM provider.
type Error struct {
	Code       ErrorCode
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %s", e.Code, e.Message)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
