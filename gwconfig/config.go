// Package gwconfig loads the gateway's process-wide configuration: a YAML
// file read once at startup, with LLM_GATEWAY_-prefixed environment
// variables applied on top.
package gwconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the conventional environment variable prefix for overrides.
const EnvPrefix = "LLM_GATEWAY_"

// Config is the gateway's complete process-wide configuration. Unknown
// keys in the YAML source are ignored by yaml.v3's default behavior.
type Config struct {
	Env             string `yaml:"env" json:"env"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
	DefaultProvider string `yaml:"default_provider" json:"default_provider"`

	ModelRegistryPath string `yaml:"model_registry_path" json:"model_registry_path"`

	SessionTTLSeconds int `yaml:"session_ttl_seconds" json:"session_ttl_seconds"`

	SemanticSearchURL  string `yaml:"semantic_search_url" json:"semantic_search_url"`
	AIAgentsURL        string `yaml:"ai_agents_url" json:"ai_agents_url"`
	CMSURL             string `yaml:"cms_url" json:"cms_url"`
	CMSEnabled         bool   `yaml:"cms_enabled" json:"cms_enabled"`
	InferenceServiceURL string `yaml:"inference_service_url" json:"inference_service_url"`

	RateLimitRPM   float64 `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	RateLimitBurst float64 `yaml:"rate_limit_burst" json:"rate_limit_burst"`

	HTTPMaxConnections    int `yaml:"http_max_connections" json:"http_max_connections"`
	HTTPMaxKeepalive      int `yaml:"http_max_keepalive" json:"http_max_keepalive"`
	HTTPTimeoutSeconds    int `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`
	RetryCount            int `yaml:"retry_count" json:"retry_count"`

	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	CircuitRecoveryTimeout  time.Duration `yaml:"circuit_recovery_timeout" json:"circuit_recovery_timeout"`
	CircuitHalfOpenMax      int           `yaml:"circuit_half_open_max" json:"circuit_half_open_max"`

	MaxToolIterations     int           `yaml:"max_tool_iterations" json:"max_tool_iterations"`
	ToolExecutionTimeout  time.Duration `yaml:"tool_execution_timeout" json:"tool_execution_timeout"`

	// ProviderAPIKeys maps a provider name (as it appears in the model
	// registry) to its API key, collected from <provider>_api_key-shaped
	// environment variables. A provider with no key here is not loaded.
	ProviderAPIKeys map[string]string `yaml:"-" json:"-"`
}

// Default returns a Config with the gateway's conservative out-of-the-box
// settings; every field here is safe for a local/dev run with no external
// dependencies reachable.
func Default() *Config {
	return &Config{
		Env:               "development",
		LogLevel:          "info",
		ModelRegistryPath: "model_registry.yaml",
		SessionTTLSeconds: 3600,
		RateLimitRPM:      60,
		RateLimitBurst:    10,

		HTTPMaxConnections: 100,
		HTTPMaxKeepalive:   10,
		HTTPTimeoutSeconds: 30,
		RetryCount:         3,

		CircuitFailureThreshold: 5,
		CircuitRecoveryTimeout:  30 * time.Second,
		CircuitHalfOpenMax:      1,

		MaxToolIterations:    10,
		ToolExecutionTimeout: 30 * time.Second,

		ProviderAPIKeys: map[string]string{},
	}
}

// Load reads path as YAML over Default(), then applies LLM_GATEWAY_-
// prefixed environment variable overrides, then provider API keys from
// <PROVIDER>_API_KEY-shaped variables for every name in providerNames. A
// missing YAML file is not fatal: Load proceeds with defaults plus
// whatever the environment supplies, matching the model registry's own
// missing-file tolerance.
func Load(path string, providerNames []string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.ProviderAPIKeys = loadProviderAPIKeys(providerNames)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL_REGISTRY_PATH"); v != "" {
		cfg.ModelRegistryPath = v
	}
	if v := envInt(EnvPrefix + "SESSION_TTL_SECONDS"); v != nil {
		cfg.SessionTTLSeconds = *v
	}
	if v := os.Getenv(EnvPrefix + "SEMANTIC_SEARCH_URL"); v != "" {
		cfg.SemanticSearchURL = v
	}
	if v := os.Getenv(EnvPrefix + "AI_AGENTS_URL"); v != "" {
		cfg.AIAgentsURL = v
	}
	if v := os.Getenv(EnvPrefix + "CMS_URL"); v != "" {
		cfg.CMSURL = v
	}
	if v := envBool(EnvPrefix + "CMS_ENABLED"); v != nil {
		cfg.CMSEnabled = *v
	}
	if v := os.Getenv(EnvPrefix + "INFERENCE_SERVICE_URL"); v != "" {
		cfg.InferenceServiceURL = v
	}
	if v := envFloat(EnvPrefix + "RATE_LIMIT_RPM"); v != nil {
		cfg.RateLimitRPM = *v
	}
	if v := envFloat(EnvPrefix + "RATE_LIMIT_BURST"); v != nil {
		cfg.RateLimitBurst = *v
	}
	if v := envInt(EnvPrefix + "HTTP_MAX_CONNECTIONS"); v != nil {
		cfg.HTTPMaxConnections = *v
	}
	if v := envInt(EnvPrefix + "HTTP_MAX_KEEPALIVE"); v != nil {
		cfg.HTTPMaxKeepalive = *v
	}
	if v := envInt(EnvPrefix + "HTTP_TIMEOUT_SECONDS"); v != nil {
		cfg.HTTPTimeoutSeconds = *v
	}
	if v := envInt(EnvPrefix + "RETRY_COUNT"); v != nil {
		cfg.RetryCount = *v
	}
	if v := envInt(EnvPrefix + "CIRCUIT_FAILURE_THRESHOLD"); v != nil {
		cfg.CircuitFailureThreshold = *v
	}
	if v := envDuration(EnvPrefix + "CIRCUIT_RECOVERY_TIMEOUT"); v != nil {
		cfg.CircuitRecoveryTimeout = *v
	}
	if v := envInt(EnvPrefix + "CIRCUIT_HALF_OPEN_MAX"); v != nil {
		cfg.CircuitHalfOpenMax = *v
	}
	if v := envInt(EnvPrefix + "MAX_TOOL_ITERATIONS"); v != nil {
		cfg.MaxToolIterations = *v
	}
	if v := envDuration(EnvPrefix + "TOOL_EXECUTION_TIMEOUT"); v != nil {
		cfg.ToolExecutionTimeout = *v
	}
}

// loadProviderAPIKeys reads <PROVIDER>_API_KEY (upper-cased, non-prefixed
// — these follow each SDK's own convention, e.g. OPENAI_API_KEY,
// ANTHROPIC_API_KEY, GEMINI_API_KEY, not the gateway's own env prefix) for
// every name in providerNames. A provider whose variable is unset or
// empty is simply absent from the result, which the caller treats as "do
// not load this provider's adapter".
func loadProviderAPIKeys(providerNames []string) map[string]string {
	keys := make(map[string]string, len(providerNames))
	for _, name := range providerNames {
		envName := upperSnake(name) + "_API_KEY"
		if v := os.Getenv(envName); v != "" {
			keys[name] = v
		}
	}
	return keys
}

func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			c = '_'
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func envBool(key string) *bool {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func envDuration(key string) *time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil
	}
	return &d
}

// Validate checks the loaded configuration for internally-inconsistent
// values that would otherwise surface as confusing failures much later.
func (c *Config) Validate() error {
	if c.SessionTTLSeconds < 1 {
		return fmt.Errorf("session_ttl_seconds must be positive, got: %d", c.SessionTTLSeconds)
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("rate_limit_rpm must be positive, got: %f", c.RateLimitRPM)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit_burst must be positive, got: %f", c.RateLimitBurst)
	}
	if c.CircuitFailureThreshold < 1 {
		return fmt.Errorf("circuit_failure_threshold must be positive, got: %d", c.CircuitFailureThreshold)
	}
	if c.CircuitHalfOpenMax < 1 {
		return fmt.Errorf("circuit_half_open_max must be positive, got: %d", c.CircuitHalfOpenMax)
	}
	if c.MaxToolIterations < 1 {
		return fmt.Errorf("max_tool_iterations must be positive, got: %d", c.MaxToolIterations)
	}
	if c.CMSEnabled && c.CMSURL == "" {
		return fmt.Errorf("cms_enabled requires cms_url to be set")
	}
	return nil
}

// SessionTTL is SessionTTLSeconds as a time.Duration, the shape
// session.NewManager expects.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
