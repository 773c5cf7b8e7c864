// Package providers defines the uniform LLM capability contract the
// orchestrator consumes, plus the concrete client adapters. Timeouts,
// retries and rate limiting live here, never in the orchestrator.
package providers

import (
	"context"
	"time"
)

// Client is the capability every LLM provider exposes. The orchestrator
// treats all providers as interchangeable behind this contract.
type Client interface {
	// Generate sends a single extraction prompt.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
}

// Request is one generation request.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"` // client default if empty
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Result is the complete outcome of a generation call. Failures are
// carried both as the error return and on the result so row handling
// can record them without losing timing/attempt info.
type Result struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`

	TokensUsed int           `json:"tokens_used,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Attempts   int           `json:"attempts"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ModelInfo describes one provider entry in the catalog exposed to
// callers for configuration UIs.
type ModelInfo struct {
	Name            string   `json:"name"`
	Models          []string `json:"available_models"`
	DefaultModel    string   `json:"default_model"`
	RequiresAPIKey  bool     `json:"requires_api_key"`
	DefaultsBaseURL string   `json:"default_base_url,omitempty"`
}
