package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds references to LLM clients. It supports config-driven
// instantiation, hot-reload, and per-request resolution with overrides.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	logger  *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers a client by name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	if r.logger != nil {
		r.logger.Info("registered provider", "name", name)
	}
}

// Get returns a client by name.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return client, nil
}

// Has checks if a client is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns all registered client names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// Resolve returns a client for a submission. Overrides for API key, base
// URL, or temperature build a fresh client; otherwise the registered one
// is reused. Unknown provider names are an error surfaced to the caller
// before any job work starts.
func (r *Registry) Resolve(provider, model, apiKey, baseURL string, temperature float64) (Client, error) {
	if !knownProvider(provider) {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", provider, availableNames())
	}

	// No per-request overrides: reuse the configured client when one exists.
	if apiKey == "" && baseURL == "" && temperature == 0 {
		if client, err := r.Get(provider); err == nil {
			return client, nil
		}
	}

	client, err := buildClient(ProviderConfig{
		Type:        provider,
		Model:       model,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ProviderConfig defines one provider entry from configuration.
type ProviderConfig struct {
	Type        string // "openai", "deepseek", "grok", "ollama", "mock"
	Model       string
	APIKey      string // Resolved API key
	BaseURL     string
	Temperature float64
	RPM         int
	Enabled     bool
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled providers will be registered; providers
// that require an API key are skipped when none is configured.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled {
			continue
		}
		if requiresAPIKey(provCfg.Type) && provCfg.APIKey == "" {
			continue
		}
		client, err := buildClient(provCfg)
		if err != nil {
			continue
		}
		r.clients[name] = client
	}
	return r
}

// Reload updates the registry based on new configuration. Providers
// that are no longer configured will be unregistered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled {
			continue
		}
		if requiresAPIKey(provCfg.Type) && provCfg.APIKey == "" {
			continue
		}
		client, err := buildClient(provCfg)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping provider", "name", name, "error", err)
			}
			continue
		}
		want[name] = true
		_, existed := r.clients[name]
		r.clients[name] = client
		if r.logger != nil {
			if existed {
				r.logger.Info("updated provider", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered provider", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.clients {
		if !want[name] {
			delete(r.clients, name)
			if r.logger != nil {
				r.logger.Info("unregistered provider", "name", name)
			}
		}
	}
}

// buildClient creates a client based on provider type.
func buildClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Type {
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			Name:         OpenAIName,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Temperature:  cfg.Temperature,
			RPM:          cfg.RPM,
		}), nil
	case DeepSeekName:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DeepSeekBaseURL
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         DeepSeekName,
			APIKey:       cfg.APIKey,
			BaseURL:      baseURL,
			DefaultModel: cfg.Model,
			Temperature:  cfg.Temperature,
			RPM:          cfg.RPM,
		}), nil
	case GrokName:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GrokBaseURL
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         GrokName,
			APIKey:       cfg.APIKey,
			BaseURL:      baseURL,
			DefaultModel: cfg.Model,
			Temperature:  cfg.Temperature,
			RPM:          cfg.RPM,
		}), nil
	case OllamaName:
		return NewOllamaClient(OllamaConfig{
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Temperature:  cfg.Temperature,
		}), nil
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// Catalog describes the providers this build knows how to talk to,
// independent of which ones currently have credentials configured.
func Catalog() []ModelInfo {
	return []ModelInfo{
		{
			Name:            OpenAIName,
			Models:          []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
			DefaultModel:    "gpt-4o-mini",
			RequiresAPIKey:  true,
			DefaultsBaseURL: "",
		},
		{
			Name:            DeepSeekName,
			Models:          []string{"deepseek-chat", "deepseek-reasoner"},
			DefaultModel:    "deepseek-chat",
			RequiresAPIKey:  true,
			DefaultsBaseURL: DeepSeekBaseURL,
		},
		{
			Name:            GrokName,
			Models:          []string{"grok-3", "grok-3-mini"},
			DefaultModel:    "grok-3-mini",
			RequiresAPIKey:  true,
			DefaultsBaseURL: GrokBaseURL,
		},
		{
			Name:            OllamaName,
			Models:          []string{"llama3.2", "mistral", "qwen2.5"},
			DefaultModel:    "llama3.2",
			RequiresAPIKey:  false,
			DefaultsBaseURL: DefaultOllamaBaseURL,
		},
	}
}

func knownProvider(name string) bool {
	switch name {
	case OpenAIName, DeepSeekName, GrokName, OllamaName, MockClientName:
		return true
	}
	return false
}

func requiresAPIKey(name string) bool {
	switch name {
	case OpenAIName, DeepSeekName, GrokName:
		return true
	}
	return false
}

func availableNames() string {
	return OpenAIName + ", " + DeepSeekName + ", " + GrokName + ", " + OllamaName
}
