package placescout

import "context"

// LLM produces the next action for a transcript.
type LLM interface {
	// Next sends the full transcript and the tool catalog to the model.
	// The reply holds either tool invocations or final text.
	Next(ctx context.Context, transcript []Message, tools []ToolSpec) (LLMReply, error)
}

// Tool represents an executable capability that the LLM can request.
type Tool interface {
	// Execute performs the tool's action and returns its plain-text result.
	Execute(ctx context.Context, args map[string]any) (string, error)

	// Spec returns the catalog entry advertised to the LLM.
	Spec() ToolSpec

	// Validate checks if the provided arguments satisfy the parameter contract.
	// Returns nil if valid, error otherwise.
	Validate(args map[string]any) error

	// Name returns the tool's name.
	Name() ToolName
}

// Summarizer turns a get_location_info payload into user-facing text.
type Summarizer func(payload string) string
