// Package config loads the trekka server configuration.
// It supports YAML files with environment variable expansion and duration parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/trekka/logging"
)

// Config represents the complete trekka server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Engine       EngineConfig       `yaml:"engine"`
	Model        ModelConfig        `yaml:"model"`
	Search       SearchConfig       `yaml:"search"`
	News         NewsConfig         `yaml:"news"`
	Weather      WeatherConfig      `yaml:"weather"`
	Encyclopedia EncyclopediaConfig `yaml:"encyclopedia"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration. An empty path selects the
// volatile in-memory store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EngineConfig holds conversation engine timing configuration
type EngineConfig struct {
	LockTimeout     time.Duration `yaml:"-"`
	ServiceTimeout  time.Duration `yaml:"-"`
	IdleTTL         time.Duration `yaml:"-"`
	CleanupInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LockTimeoutRaw     string `yaml:"lock_timeout"`
	ServiceTimeoutRaw  string `yaml:"service_timeout"`
	IdleTTLRaw         string `yaml:"idle_ttl"`
	CleanupIntervalRaw string `yaml:"cleanup_interval"`

	SystemPrompt  string `yaml:"system_prompt"`
	MaxTitleWords int    `yaml:"max_title_words"`
}

// ModelConfig selects and configures the text-generation provider
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic or mock
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
}

// SearchConfig holds web search (Tavily) configuration
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Depth      string `yaml:"depth"`
	MaxResults int    `yaml:"max_results"`
}

// NewsConfig holds news lookup configuration
type NewsConfig struct {
	QueryPrefix string   `yaml:"query_prefix"`
	MaxResults  int      `yaml:"max_results"`
	Domains     []string `yaml:"domains"`
}

// WeatherConfig holds OpenWeatherMap configuration
type WeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Country string `yaml:"country"`
	Days    int    `yaml:"days"`
}

// EncyclopediaConfig holds Wikipedia configuration
type EncyclopediaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Sentences int    `yaml:"sentences"`
	UserAgent string `yaml:"user_agent"`
}

// KnowledgeConfig points at the local knowledge base
type KnowledgeConfig struct {
	Dir  string `yaml:"dir"`
	TopK int    `yaml:"top_k"`
}

// Providers accepted in model.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Default returns the configuration used when no file is given. Service keys
// are taken from TAVILY_API_KEY and OPENWEATHER_API_KEY; the model key is
// resolved from the provider's variable when a config leaves it empty.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/trekka.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
		Engine: EngineConfig{
			LockTimeout:     5 * time.Second,
			ServiceTimeout:  20 * time.Second,
			IdleTTL:         30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxTitleWords:   4,
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Name:        "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Search: SearchConfig{APIKey: os.Getenv("TAVILY_API_KEY"), MaxResults: 3, Depth: "basic"},
		News: NewsConfig{
			QueryPrefix: "Nepal ",
			MaxResults:  5,
			Domains:     []string{"onlinekhabar.com", "setopati.com", "ratopati.com"},
		},
		Weather:      WeatherConfig{APIKey: os.Getenv("OPENWEATHER_API_KEY"), Country: "NP", Days: 3},
		Encyclopedia: EncyclopediaConfig{Enabled: true, Sentences: 3},
		Knowledge:    KnowledgeConfig{TopK: 4},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config layered over Default(). An empty path returns the defaults.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		resolveModelKey(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML data over base (Default() when nil), expanding
// environment variables and parsing durations before validating.
func Parse(data []byte, base *Config) (*Config, error) {
	cfg := base
	if cfg == nil {
		cfg = Default()
	}

	expandedData := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	resolveModelKey(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// resolveModelKey fills an empty model.api_key from OPENAI_API_KEY or
// ANTHROPIC_API_KEY depending on the provider.
func resolveModelKey(cfg *Config) {
	if cfg.Model.APIKey != "" {
		return
	}
	switch cfg.Model.Provider {
	case ProviderOpenAI:
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path is required when metrics are enabled")
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.Model.APIKey == "" {
			return fmt.Errorf("model.api_key is required for provider %q", c.Model.Provider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("model.provider must be one of openai, anthropic, mock, got %q", c.Model.Provider)
	}

	if c.Engine.LockTimeout <= 0 {
		return fmt.Errorf("engine.lock_timeout must be positive")
	}
	if c.Engine.ServiceTimeout <= 0 {
		return fmt.Errorf("engine.service_timeout must be positive")
	}
	if c.Engine.IdleTTL < 0 {
		return fmt.Errorf("engine.idle_ttl must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"engine.lock_timeout", cfg.Engine.LockTimeoutRaw, &cfg.Engine.LockTimeout},
		{"engine.service_timeout", cfg.Engine.ServiceTimeoutRaw, &cfg.Engine.ServiceTimeout},
		{"engine.idle_ttl", cfg.Engine.IdleTTLRaw, &cfg.Engine.IdleTTL},
		{"engine.cleanup_interval", cfg.Engine.CleanupIntervalRaw, &cfg.Engine.CleanupInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
