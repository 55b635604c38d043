package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nviro-labs/pathway/agents/augment"
	"github.com/nviro-labs/pathway/agents/cypherqa"
	"github.com/nviro-labs/pathway/agents/executor"
	"github.com/nviro-labs/pathway/agents/graphrag"
	"github.com/nviro-labs/pathway/agents/planner"
	"github.com/nviro-labs/pathway/agents/reasoning"
	"github.com/nviro-labs/pathway/agents/supervisor"
	"github.com/nviro-labs/pathway/callbacks"
	"github.com/nviro-labs/pathway/config"
	"github.com/nviro-labs/pathway/fewshots"
	"github.com/nviro-labs/pathway/graph"
	"github.com/nviro-labs/pathway/llmfactory"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/store"
	"github.com/nviro-labs/pathway/tools"
	"github.com/nviro-labs/pathway/tools/kg"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "cli")

var rootCmd = &cobra.Command{
	Use:   "pathway",
	Short: "Agentic question answering over the environmental projects knowledge graph",
	Long: `pathway answers natural language questions about environmental
impact projects by planning tool calls over a Neo4j knowledge graph.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "pathway.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

func initLogging(cfg *config.Config, debug bool) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	level := xlog.INFO
	switch strings.ToUpper(cfg.LogLevel) {
	case "TRACE":
		level = xlog.TRACE
	case "DEBUG":
		level = xlog.DEBUG
	case "WARNING":
		level = xlog.WARNING
	case "ERROR":
		level = xlog.ERROR
	}
	if debug {
		level = xlog.DEBUG
	}
	xlog.SetGlobalLogLevel(level)
}

// service holds the wired components shared by the serve and query
// commands.
type service struct {
	cfg        *config.Config
	client     *graph.Client
	supervisor *supervisor.Supervisor
	history    store.ChatManager
}

func newService(ctx context.Context, cmd *cobra.Command) (*service, error) {
	file, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	initLogging(cfg, debug)

	client, err := graph.New(ctx, cfg.Graph)
	if err != nil {
		return nil, err
	}

	factory := llmfactory.New(cfg.LLM)
	model, err := factory.DefaultModel()
	if err != nil {
		client.Close(ctx)
		return nil, err
	}

	sup, err := buildSupervisor(model, client, cfg)
	if err != nil {
		client.Close(ctx)
		return nil, err
	}

	var history store.ChatManager
	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		history = store.NewRedisStore(rc, cfg.Redis.Prefix)
	}

	return &service{
		cfg:        cfg,
		client:     client,
		supervisor: sup,
		history:    history,
	}, nil
}

func (s *service) close(ctx context.Context) {
	if err := s.client.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close graph client: %v\n", err)
	}
}

// record appends the exchange to the chat history when Redis is
// configured. The chat ID is taken from the context.
func (s *service) record(ctx context.Context, question, answer string) {
	if s.history == nil {
		return
	}
	err := s.history.Add(ctx,
		llms.MessageFromTextParts(llms.RoleHuman, question),
		llms.MessageFromTextParts(llms.RoleAI, answer),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to record chat history: %v\n", err)
	}
}

func buildSupervisor(model llms.Model, client *graph.Client, cfg *config.Config) (*supervisor.Supervisor, error) {
	registry := tools.NewRegistry()

	var augmentOpts []augment.Option
	if cfg.FewShots.Questions != "" {
		set, err := fewshots.LoadFile(cfg.FewShots.Questions, "")
		if err != nil {
			return nil, err
		}
		augmentOpts = append(augmentOpts, augment.WithFewShots(set, 3))
	}
	augmenter := augment.New(model, augmentOpts...)

	var cypherOpts []cypherqa.Option
	if cfg.FewShots.Cypher != "" {
		set, err := fewshots.LoadFile(cfg.FewShots.Cypher, "")
		if err != nil {
			return nil, err
		}
		cypherOpts = append(cypherOpts, cypherqa.WithFewShots(set, 5))
	}
	cypherAgent := cypherqa.New(model, client, augmenter, cypherOpts...)

	retriever := graph.NewHybridRetriever(client)
	ragAgent := graphrag.New(model, retriever, augmenter)
	reasoningAgent := reasoning.New(model)

	err := registry.Register(cypherAgent, tools.Info{
		Name:        cypherqa.AgentName,
		Description: cypherAgent.Description(),
		UseCases:    []string{"counting projects", "filtering by region or commune", "project metadata lookups"},
		Keywords:    []string{"cypher", "query", "metadata", "count"},
	})
	if err != nil {
		return nil, err
	}
	err = registry.Register(ragAgent, tools.Info{
		Name:        graphrag.AgentName,
		Description: ragAgent.Description(),
		UseCases:    []string{"questions about document content", "summaries of project descriptions"},
		Keywords:    []string{"hybrid", "graphrag", "chunk", "document", "content"},
	})
	if err != nil {
		return nil, err
	}
	err = registry.Register(reasoningAgent, tools.Info{
		Name:        reasoning.AgentName,
		Description: reasoningAgent.Description(),
		UseCases:    []string{"summarizing prior step results", "analysis and comparison of collected data"},
		Keywords:    []string{"reasoning", "reason", "analyze", "summarize", "think"},
	})
	if err != nil {
		return nil, err
	}
	if err := kg.RegisterAll(registry, client); err != nil {
		return nil, err
	}
	if err := registry.SetDefault(reasoning.AgentName); err != nil {
		return nil, err
	}

	var plannerOpts []planner.Option
	if cfg.FewShots.Planner != "" {
		set, err := fewshots.LoadFile(cfg.FewShots.Planner, "")
		if err != nil {
			return nil, err
		}
		plannerOpts = append(plannerOpts, planner.WithFewShots(set, 5))
	}

	p := planner.New(model, registry, plannerOpts...)
	e := executor.New(registry, executor.WithCallback(callbacks.NewPackageLogger(logger)))
	return supervisor.New(p, e, registry), nil
}
