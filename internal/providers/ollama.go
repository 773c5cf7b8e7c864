package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	OllamaName           = "ollama"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Temperature  float64
	MaxRetries   int
	Timeout      time.Duration
	HTTPClient   *http.Client // optional (tests)
}

// OllamaClient implements Client against the Ollama chat API.
type OllamaClient struct {
	baseURL      string
	defaultModel string
	temperature  float64
	maxRetries   int
	client       *http.Client
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.2"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		// Local models can be slow to load on first request.
		cfg.Timeout = 5 * time.Minute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OllamaClient{
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		maxRetries:   cfg.MaxRetries,
		client:       httpClient,
	}
}

// Name returns the provider identifier.
func (c *OllamaClient) Name() string {
	return OllamaName
}

// Generate sends a non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	var messages []ollamaMessage
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	chatReq := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	result := &Result{
		Provider:  OllamaName,
		ModelUsed: model,
	}

	var chatResp ollamaChatResponse
	err := retry.Do(
		func() error {
			result.Attempts++
			return c.doChat(ctx, &chatReq, &chatResp)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(500*time.Millisecond),
	)
	result.Elapsed = time.Since(start)

	if err != nil {
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("ollama chat: %w", err)
	}

	result.Success = true
	result.Text = chatResp.Message.Content
	result.TokensUsed = chatResp.PromptEvalCount + chatResp.EvalCount
	return result, nil
}

func (c *OllamaClient) doChat(ctx context.Context, chatReq *ollamaChatRequest, out *ollamaChatResponse) error {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return err
		}
		return retry.Unrecoverable(err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Error != "" {
		return retry.Unrecoverable(fmt.Errorf("ollama API error: %s", out.Error))
	}
	return nil
}

// Verify interface
var _ Client = (*OllamaClient)(nil)
