// Package config loads placescout settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

// Supported LLM providers.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// DefaultQuestion is asked when the caller supplies none.
const DefaultQuestion = "Tell me some facts about my location?"

// DefaultSystemPrompt holds the tool usage rules given to the model.
const DefaultSystemPrompt = "You are a helpful AI assistant. TOOL USAGE RULES:\n" +
	"1. If the user asks for THEIR location (e.g. 'Where am I', 'What city am I in', 'Facts about my location') and has NOT provided a city name: FIRST call get_public_ip, THEN call get_location(ip_address=<returned IP>) to obtain the city name. Optionally then call get_location_info(name=<city>) exactly once to fetch facts.\n" +
	"2. If the user directly provides a city name (e.g. 'Tell me facts about Prague'), SKIP get_public_ip and get_location and call ONLY get_location_info(name=<city>) once.\n" +
	"3. Never call the same tool more than once for the same purpose. Do not invent tools.\n" +
	"4. After tool(s) finish, produce a concise paragraph summary and STOP calling tools.\n" +
	"5. If a tool returns an error/disambiguation message, explain it and request clarification instead of calling more tools."

// Config is the complete application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	HTTP      HTTPConfig      `yaml:"http"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects the model.
type LLMConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	OllamaAddress string `yaml:"ollama_address"`
	SystemPrompt  string `yaml:"system_prompt"`
}

// AgentConfig holds the orchestration loop limits.
type AgentConfig struct {
	MaxIterations  int           `yaml:"max_iterations"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	EnableEventBus bool          `yaml:"enable_event_bus"`
}

// HTTPConfig tunes the shared HTTP client.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// EndpointsConfig holds the remote service URLs.
type EndpointsConfig struct {
	PublicIP  string `yaml:"public_ip"`
	Geo       string `yaml:"geo"`
	Wikipedia string `yaml:"wikipedia"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	agent := placescout.DefaultConfig()
	return Config{
		LLM: LLMConfig{
			Provider:      ProviderOllama,
			Model:         "llama3.2",
			OllamaAddress: "http://127.0.0.1:11434",
			SystemPrompt:  DefaultSystemPrompt,
		},
		Agent: AgentConfig{
			MaxIterations:  agent.MaxIterations,
			ToolTimeout:    agent.ToolTimeout,
			LLMTimeout:     agent.LLMTimeout,
			EnableEventBus: true,
		},
		HTTP: HTTPConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RetryDelay: 300 * time.Millisecond,
			CacheTTL:   15 * time.Minute,
		},
		Endpoints: EndpointsConfig{
			PublicIP:  "https://ifconfig.me/ip",
			Geo:       "http://ip-api.com/json/",
			Wikipedia: "https://en.wikipedia.org/w/api.php",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path (optional) over the defaults, then applies environment overrides.
// The result is not validated so callers can layer flags first; call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PLACESCOUT_* variables plus the provider conventions
// GEMINI_API_KEY and OLLAMA_SERVER_ADDRESS.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("GEMINI_API_KEY", &c.LLM.APIKey)
	str("OLLAMA_SERVER_ADDRESS", &c.LLM.OllamaAddress)
	str("PLACESCOUT_PROVIDER", &c.LLM.Provider)
	str("PLACESCOUT_MODEL", &c.LLM.Model)
	str("PLACESCOUT_API_KEY", &c.LLM.APIKey)
	str("PLACESCOUT_SYSTEM_PROMPT", &c.LLM.SystemPrompt)
	str("PLACESCOUT_PUBLIC_IP_URL", &c.Endpoints.PublicIP)
	str("PLACESCOUT_GEO_URL", &c.Endpoints.Geo)
	str("PLACESCOUT_WIKIPEDIA_URL", &c.Endpoints.Wikipedia)
	str("PLACESCOUT_LOG_LEVEL", &c.Log.Level)
	str("PLACESCOUT_LOG_FORMAT", &c.Log.Format)

	var errs []error
	if v, ok := lookup("PLACESCOUT_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLACESCOUT_MAX_ITERATIONS: %w", err))
		}
		c.Agent.MaxIterations = n
	}
	if v, ok := lookup("PLACESCOUT_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLACESCOUT_MAX_RETRIES: %w", err))
		}
		c.HTTP.MaxRetries = n
	}
	durations := map[string]*time.Duration{
		"PLACESCOUT_TOOL_TIMEOUT": &c.Agent.ToolTimeout,
		"PLACESCOUT_LLM_TIMEOUT":  &c.Agent.LLMTimeout,
		"PLACESCOUT_HTTP_TIMEOUT": &c.HTTP.Timeout,
		"PLACESCOUT_RETRY_DELAY":  &c.HTTP.RetryDelay,
		"PLACESCOUT_CACHE_TTL":    &c.HTTP.CacheTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			*dst = d
		}
	}
	if v, ok := lookup("PLACESCOUT_EVENT_BUS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLACESCOUT_EVENT_BUS: %w", err))
		}
		c.Agent.EnableEventBus = b
	}

	if len(errs) > 0 {
		return placescout.NewConfigurationError("invalid environment override", errors.Join(errs...))
	}
	return nil
}

// Validate checks limits and enumerations.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGoogleAI:
		if c.LLM.APIKey == "" {
			return placescout.NewConfigurationError("googleai provider requires an API key (GEMINI_API_KEY)", nil)
		}
	case ProviderOllama:
		if c.LLM.OllamaAddress == "" {
			return placescout.NewConfigurationError("ollama provider requires a server address", nil)
		}
	default:
		return placescout.NewConfigurationError(fmt.Sprintf("unknown llm provider %q", c.LLM.Provider), nil)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return placescout.NewConfigurationError("llm model is required", nil)
	}
	if c.Agent.MaxIterations <= 0 {
		return placescout.NewConfigurationError("agent.max_iterations must be positive", nil)
	}
	if c.Agent.ToolTimeout < 0 || c.Agent.LLMTimeout < 0 || c.HTTP.Timeout < 0 {
		return placescout.NewConfigurationError("timeouts cannot be negative", nil)
	}
	if c.HTTP.MaxRetries < 0 {
		return placescout.NewConfigurationError("http.max_retries cannot be negative", nil)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return placescout.NewConfigurationError("invalid log level", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return placescout.NewConfigurationError(fmt.Sprintf("unknown log format %q", c.Log.Format), nil)
	}
	return nil
}

// AgentOptions converts the agent section to the loop's runtime configuration.
func (c Config) AgentOptions() placescout.Config {
	rc := placescout.DefaultConfig()
	rc.MaxIterations = c.Agent.MaxIterations
	rc.ToolTimeout = c.Agent.ToolTimeout
	rc.LLMTimeout = c.Agent.LLMTimeout
	rc.EnableEventBus = c.Agent.EnableEventBus
	return rc
}

// ModelName returns the provider-qualified model name genkit resolves.
func (c Config) ModelName() string {
	if strings.HasPrefix(c.LLM.Model, c.LLM.Provider+"/") {
		return c.LLM.Model
	}
	return c.LLM.Provider + "/" + c.LLM.Model
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}
