package config

// Config holds sift configuration.
// Stored at: ~/.sift/config.yaml (or the path passed with --config)
type Config struct {
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults  DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Server    ServerCfg              `mapstructure:"server" yaml:"server"`
	Storage   StorageCfg             `mapstructure:"storage" yaml:"storage"`
}

// ProviderCfg configures one LLM provider.
type ProviderCfg struct {
	Type        string  `mapstructure:"type" yaml:"type"`     // "openai", "deepseek", "grok", "ollama"
	Model       string  `mapstructure:"model" yaml:"model"`   // Default model name
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	RateLimit   int     `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default job settings.
type DefaultsCfg struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`       // Default LLM provider
	Model      string `mapstructure:"model" yaml:"model"`             // Default model
	MaxWorkers int    `mapstructure:"max_workers" yaml:"max_workers"` // Concurrent job limit
	QueueSize  int    `mapstructure:"queue_size" yaml:"queue_size"`   // Pending job backlog
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// StorageCfg holds persistence settings.
type StorageCfg struct {
	// DataDir is where the SQLite database lives (default: ~/.sift/data)
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 150,
				Enabled:   true,
			},
			"deepseek": {
				Type:      "deepseek",
				Model:     "deepseek-chat",
				APIKey:    "${DEEPSEEK_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"grok": {
				Type:      "grok",
				Model:     "grok-3-mini",
				APIKey:    "${XAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"ollama": {
				Type:    "ollama",
				Model:   "llama3.2",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			Provider:   "openai",
			MaxWorkers: 2,
			QueueSize:  64,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8321,
		},
		Storage: StorageCfg{},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
