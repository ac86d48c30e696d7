// Package config loads conductor configuration from defaults, an
// optional YAML file and environment variable overrides, in that
// order.
package config

import (
	"fmt"
	"time"
)

// Config is the full conductor configuration.
type Config struct {
	Agents       AgentsConfig       `yaml:"agents" env:"AGENTS"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	Protocol     ProtocolConfig     `yaml:"protocol" env:"PROTOCOL"`
	Coordinator  CoordinatorConfig  `yaml:"coordinator" env:"COORDINATOR"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Database     DatabaseConfig     `yaml:"database" env:"DATABASE"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Metrics      MetricsConfig      `yaml:"metrics" env:"METRICS"`
}

// AgentsConfig lists the worker agents to discover at startup.
type AgentsConfig struct {
	// Endpoints of the worker agents' base URLs.
	Endpoints []string `yaml:"endpoints" env:"ENDPOINTS"`
	// DiscoveryTimeout bounds each descriptor fetch.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" env:"DISCOVERY_TIMEOUT"`
}

// OrchestratorConfig tunes the turn loop.
type OrchestratorConfig struct {
	MaxTurns           int           `yaml:"max_turns" env:"MAX_TURNS"`
	ScratchpadCapacity int           `yaml:"scratchpad_capacity" env:"SCRATCHPAD_CAPACITY"`
	TodoCapacity       int           `yaml:"todo_capacity" env:"TODO_CAPACITY"`
	HistoryCapacity    int           `yaml:"history_capacity" env:"HISTORY_CAPACITY"`
	HistoryTokenBudget int           `yaml:"history_token_budget" env:"HISTORY_TOKEN_BUDGET"`
	QueryPollInterval  time.Duration `yaml:"query_poll_interval" env:"QUERY_POLL_INTERVAL"`
	QueryMaxWait       time.Duration `yaml:"query_max_wait" env:"QUERY_MAX_WAIT"`
	SystemPrompt       string        `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
}

// ProtocolConfig tunes the task protocol client.
type ProtocolConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MaxWait      time.Duration `yaml:"max_wait" env:"MAX_WAIT"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	AuthToken    string        `yaml:"auth_token" env:"AUTH_TOKEN"`
}

// CoordinatorConfig tunes multi-agent coordination.
type CoordinatorConfig struct {
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents" env:"MAX_CONCURRENT_AGENTS"`
	AgentMaxWait        time.Duration `yaml:"agent_max_wait" env:"AGENT_MAX_WAIT"`
	AgentPollInterval   time.Duration `yaml:"agent_poll_interval" env:"AGENT_POLL_INTERVAL"`
	FailureThreshold    float64       `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
}

// LLMConfig tunes the model provider.
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	Model             string        `yaml:"model" env:"MODEL"`
	MaxTokens         int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature       float64       `yaml:"temperature" env:"TEMPERATURE"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" env:"BURST"`
}

// DatabaseConfig locates the context store.
type DatabaseConfig struct {
	// DSN of the sqlite database. ":memory:" for ephemeral runs.
	DSN string `yaml:"dsn" env:"DSN"`
}

// RedisConfig locates the descriptor cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// LogConfig tunes the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// MetricsConfig names the Prometheus namespace.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxTurns <= 0 {
		return fmt.Errorf("orchestrator.max_turns must be positive, got %d", c.Orchestrator.MaxTurns)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if c.Coordinator.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("coordinator.max_concurrent_agents must be positive, got %d", c.Coordinator.MaxConcurrentAgents)
	}
	if t := c.Coordinator.FailureThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("coordinator.failure_threshold must be in (0, 1], got %g", t)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
