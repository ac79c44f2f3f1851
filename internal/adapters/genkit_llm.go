package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

// Tool inputs mirror the catalog's parameter contracts so the generated JSON
// schemas match what the loop validates. Keep the json tags in step with
// placescout.Catalog; catalogInputs is checked against it in tests.
type (
	publicIPInput struct{}

	locationInput struct {
		IPAddress string `json:"ip_address" jsonschema_description:"The public IP address of the user."`
	}

	locationInfoInput struct {
		Name string `json:"name" jsonschema_description:"The name of the city."`
	}
)

// catalogInputs maps each catalog tool to the input type its schema is generated from.
var catalogInputs = map[placescout.ToolName]any{
	placescout.ToolGetPublicIP:     publicIPInput{},
	placescout.ToolGetLocation:     locationInput{},
	placescout.ToolGetLocationInfo: locationInfoInput{},
}

// errLoopOwnsExecution is returned if genkit ever tries to run a tool itself.
var errLoopOwnsExecution = errors.New("tool calls are executed by the orchestration loop")

// GenkitLLM implements placescout.LLM on top of a genkit model. Tool requests
// are returned to the caller instead of being executed by genkit.
type GenkitLLM struct {
	g      *genkit.Genkit
	model  string
	logger *slog.Logger

	// tools holds the genkit definition behind each catalog name.
	tools map[placescout.ToolName]ai.ToolRef
}

// NewGenkitLLM registers the catalog's tools with g and returns an LLM that
// generates with model, e.g. "googleai/gemini-2.0-flash" or "ollama/llama3.2".
func NewGenkitLLM(g *genkit.Genkit, model string, logger *slog.Logger) (*GenkitLLM, error) {
	if g == nil {
		return nil, placescout.NewConfigurationError("genkit instance is required", nil)
	}
	if strings.TrimSpace(model) == "" {
		return nil, placescout.NewConfigurationError("model name is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GenkitLLM{
		g:      g,
		model:  model,
		logger: logger.With("component", "llm", "model", model),
		tools: map[placescout.ToolName]ai.ToolRef{
			placescout.ToolGetPublicIP:     defineCatalogTool[publicIPInput](g, placescout.ToolGetPublicIP),
			placescout.ToolGetLocation:     defineCatalogTool[locationInput](g, placescout.ToolGetLocation),
			placescout.ToolGetLocationInfo: defineCatalogTool[locationInfoInput](g, placescout.ToolGetLocationInfo),
		},
	}, nil
}

// defineCatalogTool registers name with the catalog description. The input
// schema genkit derives from In must list the catalog parameters.
func defineCatalogTool[In any](g *genkit.Genkit, name placescout.ToolName) ai.Tool {
	return genkit.DefineTool(g, string(name), placescout.MustSpec(name).Description,
		func(ctx *ai.ToolContext, _ In) (string, error) {
			return "", errLoopOwnsExecution
		})
}

// toolRefs selects the registered tools named by specs, in order.
func (l *GenkitLLM) toolRefs(specs []placescout.ToolSpec) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(specs))
	for _, spec := range specs {
		ref, ok := l.tools[spec.Name]
		if !ok {
			l.logger.Warn("ignoring tool outside the catalog", "tool", spec.Name)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// Next implements placescout.LLM.
func (l *GenkitLLM) Next(ctx context.Context, transcript []placescout.Message, tools []placescout.ToolSpec) (placescout.LLMReply, error) {
	messages := ToGenkitMessages(transcript)
	refs := l.toolRefs(tools)
	l.logger.Debug("sending messages to llm", "messages", len(messages), "tools", len(refs))

	opts := []ai.GenerateOption{
		ai.WithModelName(l.model),
		ai.WithMessages(messages...),
		ai.WithReturnToolRequests(true),
	}
	if len(refs) > 0 {
		opts = append(opts, ai.WithTools(refs...))
	}
	resp, err := genkit.Generate(ctx, l.g, opts...)
	if err != nil {
		return placescout.LLMReply{}, fmt.Errorf("genkit generate: %w", err)
	}

	reply := ReplyFromMessage(resp.Message, l.logger)
	l.logger.Debug("llm response", "tool_calls", len(reply.ToolCalls), "content_length", len(reply.Content))
	return reply, nil
}

// ToGenkitMessages converts a transcript to genkit messages.
func ToGenkitMessages(transcript []placescout.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(transcript))
	for _, msg := range transcript {
		switch msg.Role {
		case placescout.RoleSystem:
			out = append(out, ai.NewSystemTextMessage(msg.Content))
		case placescout.RoleUser:
			out = append(out, ai.NewUserTextMessage(msg.Content))
		case placescout.RoleAssistant:
			parts := make([]*ai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, ai.NewTextPart(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, ai.NewToolRequestPart(&ai.ToolRequest{
					Name:  string(call.Name),
					Ref:   call.ID,
					Input: call.Arguments,
				}))
			}
			if len(parts) > 0 {
				out = append(out, ai.NewMessage(ai.RoleModel, nil, parts...))
			}
		case placescout.RoleTool:
			out = append(out, ai.NewMessage(ai.RoleTool, nil, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   msg.Name,
				Ref:    msg.ToolCallID,
				Output: map[string]any{"content": msg.Content},
			})))
		}
	}
	return out
}

// ReplyFromMessage extracts the text and tool requests of a model message.
// Requests without a reference get a generated id.
func ReplyFromMessage(msg *ai.Message, logger *slog.Logger) placescout.LLMReply {
	var reply placescout.LLMReply
	if msg == nil {
		return reply
	}
	if logger == nil {
		logger = slog.Default()
	}

	var text strings.Builder
	for _, part := range msg.Content {
		switch {
		case part == nil:
		case part.IsToolRequest() && part.ToolRequest != nil:
			req := part.ToolRequest
			id := req.Ref
			if id == "" {
				id = uuid.NewString()
			}
			reply.ToolCalls = append(reply.ToolCalls, placescout.ToolInvocation{
				ID:        id,
				Name:      placescout.ToolName(req.Name),
				Arguments: DecodeArguments(req.Input, logger),
			})
		case part.IsText():
			text.WriteString(part.Text)
		}
	}
	reply.Content = text.String()
	return reply
}

// DecodeArguments normalizes tool request input to an argument map. Models
// sometimes send the arguments as a JSON string; undecodable input yields an
// empty map so the tool's validation reports it.
func DecodeArguments(input any, logger *slog.Logger) map[string]any {
	switch v := input.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return map[string]any{}
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
			logger.Warn("tool arguments could not be parsed as JSON", "arguments", v)
			return map[string]any{}
		}
		return args
	default:
		b, err := json.Marshal(v)
		if err != nil {
			logger.Warn("tool arguments could not be encoded", "error", err)
			return map[string]any{}
		}
		var args map[string]any
		if err := json.Unmarshal(b, &args); err != nil || args == nil {
			logger.Warn("tool arguments are not an object", "arguments", string(b))
			return map[string]any{}
		}
		return args
	}
}
