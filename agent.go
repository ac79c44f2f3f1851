// Package placescout answers "where am I / tell me about this place" questions by
// letting an LLM drive three tools: public IP lookup, IP geolocation and
// encyclopedia facts lookup.
package placescout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"
)

// Agent runs the tool-orchestration loop.
type Agent struct {
	llm       LLM
	tools     map[ToolName]Tool
	summarize Summarizer
	eventBus  eventbus.EventBus
	logger    *slog.Logger

	config Config
}

// Components holds what the state transitions need for one run.
type Components struct {
	LLM       LLM
	Tools     map[ToolName]Tool
	Catalog   []ToolSpec
	Summarize Summarizer
	Logger    *slog.Logger
	Config    Config
}

// Config holds the runtime knobs of the orchestration loop.
type Config struct {
	// Maximum number of LLM rounds before the run fails
	MaxIterations int

	// Per-call timeouts; zero disables the timeout
	ToolTimeout time.Duration
	LLMTimeout  time.Duration

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       5,
		ToolTimeout:         20 * time.Second,
		LLMTimeout:          60 * time.Second,
		EnableEventBus:      false,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 2,
	}
}

// Option is a function that configures an Agent.
type Option func(*Agent)

// WithConfig sets the loop configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) {
		a.config = config
	}
}

// WithLLM sets the model collaborator.
func WithLLM(llm LLM) Option {
	return func(a *Agent) {
		a.llm = llm
	}
}

// WithTools adds tool implementations, keyed by their catalog name.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) {
		if a.tools == nil {
			a.tools = make(map[ToolName]Tool)
		}
		for _, tool := range tools {
			if tool != nil {
				a.tools[tool.Name()] = tool
			}
		}
	}
}

// WithSummarizer replaces SummarizeFacts as the renderer of facts payloads.
func WithSummarizer(s Summarizer) Option {
	return func(a *Agent) {
		a.summarize = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates an Agent with the provided options.
func New(options ...Option) (*Agent, error) {
	a := &Agent{
		config:    DefaultConfig(),
		tools:     make(map[ToolName]Tool),
		summarize: SummarizeFacts,
	}
	for _, option := range options {
		option(a)
	}

	if a.llm == nil {
		return nil, NewConfigurationError("llm is required", nil)
	}
	if len(a.tools) == 0 {
		return nil, NewConfigurationError("at least one tool is required", nil)
	}
	for name := range a.tools {
		if !name.Known() {
			return nil, NewConfigurationError(fmt.Sprintf("tool '%s' is not part of the catalog", name), nil)
		}
	}
	if a.config.MaxIterations <= 0 {
		return nil, NewConfigurationError("max iterations must be positive", nil)
	}
	if a.summarize == nil {
		a.summarize = SummarizeFacts
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "agent")

	if a.config.EnableEventBus && a.eventBus == nil {
		a.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(a.config.EventBusBufferSize),
			eventbus.WithWorkerCount(a.config.EventBusWorkerCount),
			eventbus.WithLogger(a.logger),
		)
		a.logger.Debug("initialized default channel-based event bus")
	}

	return a, nil
}

// EventBus returns the bus run events are published on, or nil when disabled.
func (a *Agent) EventBus() eventbus.EventBus {
	return a.eventBus
}

// Close releases the event bus, if any.
func (a *Agent) Close() error {
	if a.eventBus != nil {
		return a.eventBus.Close()
	}
	return nil
}

// ListTools returns the names of the registered tools in catalog order.
func (a *Agent) ListTools() []ToolName {
	names := make([]ToolName, 0, len(a.tools))
	for _, spec := range toolCatalog {
		if _, ok := a.tools[spec.Name]; ok {
			names = append(names, spec.Name)
		}
	}
	return names
}

// Run drives the conversation in transcript until a terminal answer is produced.
// The transcript is appended to in place. It fails with an error matching
// ErrIterationLimitExceeded when no answer arrives within Config.MaxIterations rounds.
func (a *Agent) Run(ctx context.Context, transcript *Transcript) (string, error) {
	if transcript == nil {
		return "", NewValidationError("init", "transcript is required", nil)
	}

	rc := NewRunContext(uuid.NewString(), transcript)
	logger := a.logger.With("run_id", rc.RunID)
	logger.Info("starting agent run loop", "messages", transcript.Len(), "max_iterations", a.config.MaxIterations)
	publish(ctx, a.eventBus, eventbus.NewEvent(eventbus.EventRunStarted, rc.RunID, 0))

	answer, err := a.createStateMachine(logger).Execute(ctx, rc)

	switch rc.CurrentState {
	case StateDone:
		logger.Info("agent run complete", "rounds", rc.Round, "duration", rc.Duration())
		publish(ctx, a.eventBus, eventbus.NewEvent(eventbus.EventRunCompleted, rc.RunID, rc.Round).
			WithAttr("duration_ms", rc.Duration().Milliseconds()))
	case StateCancelled:
		logger.Warn("agent run cancelled", "stage", rc.ErrorStage, "error", err)
		publish(context.WithoutCancel(ctx), a.eventBus, eventbus.NewEvent(eventbus.EventRunCancelled, rc.RunID, rc.Round).
			WithDetail(errString(err)))
	default:
		logger.Error("agent run failed", "stage", rc.ErrorStage, "rounds", rc.Round, "error", err)
		publish(ctx, a.eventBus, eventbus.NewEvent(eventbus.EventRunFailed, rc.RunID, rc.Round).
			WithDetail(errString(err)).
			WithAttr("stage", rc.ErrorStage))
	}
	return answer, err
}

func (a *Agent) createStateMachine(logger *slog.Logger) *StateMachine {
	components := Components{
		LLM:       a.llm,
		Tools:     make(map[ToolName]Tool, len(a.tools)),
		Catalog:   Catalog(),
		Summarize: a.summarize,
		Logger:    logger,
		Config:    a.config,
	}
	for name, tool := range a.tools {
		components.Tools[name] = tool
	}
	return CreateRunStateMachine(components, a.eventBus)
}

func publish(ctx context.Context, bus eventbus.EventBus, event eventbus.Event) {
	if bus == nil {
		return
	}
	_ = bus.Publish(ctx, event)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
