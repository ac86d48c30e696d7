// Command conductor drives worker agents against a task, either
// through the LLM-backed turn loop or through direct multi-agent
// coordination.
//
// Usage:
//
//	conductor run --config config.yaml --task "Research the market"
//	conductor process --config config.yaml --message "Compare the two proposals"
//	conductor version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentmesh/conductor/config"
	"github.com/agentmesh/conductor/coordinator"
	"github.com/agentmesh/conductor/discovery"
	"github.com/agentmesh/conductor/internal/metrics"
	"github.com/agentmesh/conductor/llm"
	"github.com/agentmesh/conductor/orchestrator"
	"github.com/agentmesh/conductor/persistence"
	"github.com/agentmesh/conductor/protocol"
	"github.com/agentmesh/conductor/routing"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runConduct(os.Args[2:])
	case "process":
		runProcess(os.Args[2:])
	case "version":
		fmt.Printf("conductor %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runConduct starts the LLM-driven turn loop against the configured
// agents.
func runConduct(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	task := fs.String("task", "", "Task instruction for the conductor")
	maxTurns := fs.Int("max-turns", 0, "Override the configured turn budget")
	fs.Parse(args)

	if *task == "" {
		fmt.Fprintln(os.Stderr, "run requires --task")
		os.Exit(1)
	}

	cfg, logger := mustSetup(*configPath)
	defer logger.Sync()

	collector := buildCollector(cfg)
	ctx := signalContext()

	provider := llm.NewResilientProvider(
		llm.NewOpenAIProvider(&llm.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger),
		&llm.ResilienceConfig{
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
		}, logger, collector)

	conductor := orchestrator.NewConductor(provider, &orchestrator.ConductorConfig{
		SystemPrompt:        cfg.Orchestrator.SystemPrompt,
		MaxTurns:            cfg.Orchestrator.MaxTurns,
		ScratchpadCapacity:  cfg.Orchestrator.ScratchpadCapacity,
		TodoCapacity:        cfg.Orchestrator.TodoCapacity,
		HistoryCapacity:     cfg.Orchestrator.HistoryCapacity,
		HistoryTokenBudget:  cfg.Orchestrator.HistoryTokenBudget,
		Handler: &orchestrator.HandlerConfig{
			QueryPollInterval: cfg.Orchestrator.QueryPollInterval,
			QueryMaxWait:      cfg.Orchestrator.QueryMaxWait,
		},
		MaxCompletionTokens: cfg.LLM.MaxTokens,
		Temperature:         float32(cfg.LLM.Temperature),
	}, logger, collector)

	registry := buildRegistry(cfg, logger)
	factory := protocolFactory(cfg, logger, collector)
	if err := conductor.Setup(ctx, cfg.Agents.Endpoints, registry, factory); err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}

	result, err := conductor.Run(ctx, *task, *maxTurns)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	if result.Completed {
		fmt.Println(result.FinishMessage)
	} else {
		fmt.Fprintf(os.Stderr, "Task did not complete in %d turns\n", result.TurnsExecuted)
		os.Exit(1)
	}
}

// runProcess coordinates the configured agents on a single message
// without the LLM loop.
func runProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	message := fs.String("message", "", "Message to process")
	mode := fs.String("mode", "", "Execution mode: sequential, parallel or collaborative (default inferred)")
	contextID := fs.String("context", "", "Conversation context id")
	fs.Parse(args)

	if *message == "" {
		fmt.Fprintln(os.Stderr, "process requires --message")
		os.Exit(1)
	}

	cfg, logger := mustSetup(*configPath)
	defer logger.Sync()

	collector := buildCollector(cfg)
	ctx := signalContext()

	registry := buildRegistry(cfg, logger)
	discovered := registry.Discover(ctx, cfg.Agents.Endpoints)
	if discovered == 0 {
		logger.Fatal("no agents discovered", zap.Strings("endpoints", cfg.Agents.Endpoints))
	}

	db, err := persistence.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	store, err := persistence.NewSQLStore(db, logger)
	if err != nil {
		logger.Fatal("init store", zap.Error(err))
	}
	if err := registerDiscoveredAgents(ctx, store, registry); err != nil {
		logger.Fatal("register agents", zap.Error(err))
	}

	factory := func(endpoint string) coordinator.AgentClient {
		return protocol.NewClient(endpoint, protocolClientConfig(cfg), logger, collector)
	}
	coord := coordinator.New(store, nil, factory, &coordinator.Config{
		MaxConcurrentAgents: cfg.Coordinator.MaxConcurrentAgents,
		AgentMaxWait:        cfg.Coordinator.AgentMaxWait,
		AgentPollInterval:   cfg.Coordinator.AgentPollInterval,
		FailureThreshold:    cfg.Coordinator.FailureThreshold,
	}, logger)

	result, err := coord.Process(ctx, *message, &coordinator.ProcessOptions{
		ContextID: *contextID,
		Mode:      routing.ExecutionMode(*mode),
	})
	if err != nil {
		logger.Fatal("process failed", zap.Error(err))
	}
	fmt.Println(result.FinalResponse)
}

func mustSetup(configPath string) (*config.Config, *zap.Logger) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting conductor", zap.String("version", Version))
	return cfg, logger
}

func buildCollector(cfg *config.Config) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
}

func buildRegistry(cfg *config.Config, logger *zap.Logger) *discovery.Registry {
	fetcher := discovery.NewHTTPFetcher(cfg.Agents.DiscoveryTimeout)
	var opts []discovery.RegistryOption
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, discovery.WithCache(discovery.NewRedisCache(client, cfg.Redis.CacheTTL)))
	}
	return discovery.NewRegistry(fetcher, logger, opts...)
}

func protocolClientConfig(cfg *config.Config) *protocol.ClientConfig {
	clientCfg := protocol.DefaultClientConfig()
	clientCfg.Timeout = cfg.Protocol.Timeout
	clientCfg.PollInterval = cfg.Protocol.PollInterval
	clientCfg.MaxWait = cfg.Protocol.MaxWait
	clientCfg.AuthToken = cfg.Protocol.AuthToken
	clientCfg.Retry.MaxRetries = cfg.Protocol.MaxRetries
	return clientCfg
}

func protocolFactory(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) orchestrator.ClientFactory {
	return func(endpoint string) orchestrator.TaskClient {
		return protocol.NewClient(endpoint, protocolClientConfig(cfg), logger, collector)
	}
}

// registerDiscoveredAgents mirrors the discovery registry into the
// store, mapping skill names to routing capabilities.
func registerDiscoveredAgents(ctx context.Context, store persistence.ContextStore, registry *discovery.Registry) error {
	for _, desc := range registry.All() {
		if err := store.RegisterAgent(ctx, &persistence.AgentRecord{
			ID:           desc.ID,
			Name:         desc.Name,
			Description:  desc.Description,
			Endpoint:     desc.URL,
			Capabilities: desc.SkillNames(),
			Available:    true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx
}

func printUsage() {
	fmt.Println(`conductor - multi-agent task conductor

Usage:
  conductor <command> [options]

Commands:
  run       Run the LLM-driven turn loop against a task
  process   Coordinate agents on a single message
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --task <text>       Task instruction
  --max-turns <n>     Override the configured turn budget

Options for 'process':
  --config <path>     Path to configuration file (YAML)
  --message <text>    Message to process
  --mode <mode>       sequential, parallel or collaborative
  --context <id>      Conversation context id`)
}
