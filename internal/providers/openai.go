package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI-compatible providers and their base URLs. DeepSeek and Grok
// speak the OpenAI chat completions protocol, so one client serves all
// three with a base-URL override.
const (
	OpenAIName   = "openai"
	DeepSeekName = "deepseek"
	GrokName     = "grok"

	DeepSeekBaseURL = "https://api.deepseek.com"
	GrokBaseURL     = "https://api.x.ai/v1"
)

// OpenAIConfig holds configuration for an OpenAI-compatible client.
type OpenAIConfig struct {
	Name         string // provider identifier (default "openai")
	APIKey       string
	BaseURL      string // empty means the SDK's default (api.openai.com)
	DefaultModel string
	Temperature  float64
	RPM          int           // requests per minute (default 150)
	MaxRetries   int           // SDK transport retries (default 3)
	Timeout      time.Duration // HTTP timeout (default 120s)
	HTTPClient   *http.Client  // optional (tests)
}

// OpenAIClient implements Client on the official OpenAI SDK.
type OpenAIClient struct {
	name         string
	defaultModel string
	temperature  float64
	limiter      *RateLimiter
	client       openai.Client
}

// NewOpenAIClient creates a client for any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Name == "" {
		cfg.Name = OpenAIName
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 150
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		limiter:      NewRateLimiter(cfg.RPM),
		client:       openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Generate sends a chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	result := &Result{
		Provider: c.name,
		Attempts: 1,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		result.ErrorType = "cancelled"
		result.ErrorMessage = err.Error()
		result.Elapsed = time.Since(start)
		return result, err
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	result.ModelUsed = model

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	result.Elapsed = time.Since(start)

	if err != nil {
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("%s chat completion: %w", c.name, err)
	}
	if len(completion.Choices) == 0 {
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		return result, fmt.Errorf("%s: no choices in response", c.name)
	}

	result.Success = true
	result.Text = completion.Choices[0].Message.Content
	result.TokensUsed = int(completion.Usage.TotalTokens)
	return result, nil
}
