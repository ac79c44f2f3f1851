package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/adapters"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/config"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/httpx"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/netinfo"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/resolver"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/tools"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/wikipedia"
)

const defaultGoogleAIModel = "gemini-2.0-flash"

func run(ctx context.Context, opts *Options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	llm, err := newLLM(ctx, cfg, logger)
	if err != nil {
		return err
	}

	toolset, err := newTools(cfg, logger)
	if err != nil {
		return err
	}

	agent, err := placescout.New(
		placescout.WithConfig(cfg.AgentOptions()),
		placescout.WithLLM(llm),
		placescout.WithTools(toolset...),
		placescout.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer agent.Close()

	if bus := agent.EventBus(); bus != nil {
		if _, err := bus.SubscribeAll(logEvents(logger)); err != nil {
			return err
		}
	}

	transcript := placescout.NewTranscript(
		placescout.SystemMessage(cfg.LLM.SystemPrompt),
		placescout.UserMessage(opts.question()),
	)

	logger.Info("running agent", "provider", cfg.LLM.Provider, "model", cfg.ModelName())
	answer, err := agent.Run(ctx, transcript)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Info about my location:")
	fmt.Fprintln(stdout, answer)
	return nil
}

func newLLM(ctx context.Context, cfg config.Config, logger *slog.Logger) (*adapters.GenkitLLM, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGoogleAI:
		g, err := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.LLM.APIKey}))
		if err != nil {
			return nil, placescout.NewConfigurationError("failed to initialize genkit", err)
		}
		return adapters.NewGenkitLLM(g, cfg.ModelName(), logger)

	case config.ProviderOllama:
		o := &ollama.Ollama{ServerAddress: cfg.LLM.OllamaAddress}
		g, err := genkit.Init(ctx, genkit.WithPlugins(o))
		if err != nil {
			return nil, placescout.NewConfigurationError("failed to initialize genkit", err)
		}
		o.DefineModel(g,
			ollama.ModelDefinition{
				Name: strings.TrimPrefix(cfg.LLM.Model, config.ProviderOllama+"/"),
				Type: "chat",
			},
			&ai.ModelInfo{
				Supports: &ai.ModelSupports{
					Multiturn:  true,
					SystemRole: true,
					Tools:      true,
				},
			})
		return adapters.NewGenkitLLM(g, cfg.ModelName(), logger)
	}
	return nil, placescout.NewConfigurationError(fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider), nil)
}

func newTools(cfg config.Config, logger *slog.Logger) ([]placescout.Tool, error) {
	client := httpx.New(
		httpx.WithTimeout(cfg.HTTP.Timeout),
		httpx.WithRetries(cfg.HTTP.MaxRetries, cfg.HTTP.RetryDelay),
		httpx.WithLogger(logger),
	)
	wiki := wikipedia.New(client,
		wikipedia.WithLogger(logger),
		wikipedia.WithEndpoint(cfg.Endpoints.Wikipedia),
		wikipedia.WithCacheTTL(cfg.HTTP.CacheTTL),
	)

	return tools.SetupTools(tools.Dependencies{
		PublicIP: netinfo.NewPublicIPClient(client, cfg.Endpoints.PublicIP, logger),
		Geo:      netinfo.NewGeoClient(client, cfg.Endpoints.Geo, logger),
		Resolver: resolver.New(wiki, logger),
		Logger:   logger,
	})
}

// logEvents traces run events at debug level.
func logEvents(logger *slog.Logger) eventbus.Handler {
	logger = logger.With("component", "events")
	return func(ctx context.Context, event eventbus.Event) error {
		attrs := []any{"run_id", event.RunID, "round", event.Round}
		if event.Tool != "" {
			attrs = append(attrs, "tool", event.Tool, "call_id", event.CallID)
		}
		if event.Detail != "" {
			attrs = append(attrs, "detail", event.Detail)
		}
		for k, v := range event.Attrs {
			attrs = append(attrs, k, v)
		}
		logger.DebugContext(ctx, string(event.Type), attrs...)
		return nil
	}
}
