package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agents:       DefaultAgentsConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Protocol:     DefaultProtocolConfig(),
		Coordinator:  DefaultCoordinatorConfig(),
		LLM:          DefaultLLMConfig(),
		Database:     DatabaseConfig{DSN: "conductor.db"},
		Redis:        RedisConfig{CacheTTL: 5 * time.Minute},
		Log:          DefaultLogConfig(),
		Metrics:      MetricsConfig{Enabled: true, Namespace: "conductor"},
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		DiscoveryTimeout: 10 * time.Second,
	}
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxTurns:           50,
		ScratchpadCapacity: 50,
		TodoCapacity:       100,
		HistoryCapacity:    100,
		HistoryTokenBudget: 8192,
		QueryPollInterval:  2 * time.Second,
		QueryMaxWait:       120 * time.Second,
	}
}

func DefaultProtocolConfig() ProtocolConfig {
	return ProtocolConfig{
		Timeout:      30 * time.Second,
		PollInterval: 2 * time.Second,
		MaxWait:      300 * time.Second,
		MaxRetries:   3,
	}
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxConcurrentAgents: 5,
		AgentMaxWait:        120 * time.Second,
		AgentPollInterval:   2 * time.Second,
		FailureThreshold:    1.0,
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o",
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
