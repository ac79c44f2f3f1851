package placescout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"
)

// CreateRunStateMachine builds the state machine for one orchestration run.
func CreateRunStateMachine(components Components, eventBus eventbus.EventBus) *StateMachine {
	sm := NewStateMachine(eventBus)

	sm.RegisterTransition(StateRequesting, createRequestingTransition(components))
	sm.RegisterTransition(StateDispatching, createDispatchingTransition(components))

	return sm
}

// createRequestingTransition sends the transcript to the LLM and routes on its reply.
func createRequestingTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, rc *RunContext) (RunState, error) {
		logger := components.Logger
		if rc.Round >= components.Config.MaxIterations {
			return StateFailed, NewIterationLimitError(string(StateRequesting), rc.Round)
		}
		rc.Round++

		publish(ctx, eb, eventbus.NewEvent(eventbus.EventRoundStarted, rc.RunID, rc.Round).
			WithAttr("messages", rc.Transcript.Len()))
		logger.Debug("requesting llm reply", "round", rc.Round, "messages", rc.Transcript.Len())

		llmCtx, cancel := withOptionalTimeout(ctx, components.Config.LLMTimeout)
		reply, err := components.LLM.Next(llmCtx, rc.Transcript.Messages(), components.Catalog)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return StateCancelled, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = NewTimeoutError(string(StateRequesting), err)
			}
			return StateFailed, NewExternalServiceError(string(StateRequesting), "llm", err)
		}

		publish(ctx, eb, eventbus.NewEvent(eventbus.EventLLMReplied, rc.RunID, rc.Round).
			WithAttr("tool_calls", len(reply.ToolCalls)).
			WithAttr("has_content", reply.Content != ""))

		if len(reply.ToolCalls) > 0 {
			rc.Pending = &reply
			return StateDispatching, nil
		}

		if strings.TrimSpace(reply.Content) == "" {
			// Nothing to act on; the round is spent and the model asked again.
			logger.Warn("llm reply carried neither tool calls nor text", "round", rc.Round)
			return StateRequesting, nil
		}

		rc.Transcript.Append(AssistantMessage(reply.Content))
		rc.Finish(reply.Content)
		return StateDone, nil
	}
}

// createDispatchingTransition executes the pending tool calls in order.
func createDispatchingTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, rc *RunContext) (RunState, error) {
		if rc.Pending == nil {
			return StateFailed, NewInternalError(string(StateDispatching), "no pending reply to dispatch", nil)
		}
		reply := *rc.Pending
		rc.Pending = nil

		calls := make([]ToolInvocation, len(reply.ToolCalls))
		for i, call := range reply.ToolCalls {
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			if call.Arguments == nil {
				call.Arguments = map[string]any{}
			}
			calls[i] = call
		}
		rc.Transcript.Append(AssistantMessage(reply.Content, calls...))

		for i, call := range calls {
			if err := ctx.Err(); err != nil {
				return StateCancelled, err
			}

			result, dispatched, err := dispatchCall(ctx, components, eb, rc, call)
			if err != nil {
				return StateCancelled, err
			}
			rc.Transcript.Append(ToolResultMessage(call, result))

			if dispatched && call.Name.Terminal() {
				if skipped := len(calls) - i - 1; skipped > 0 {
					components.Logger.Debug("skipping tool calls after terminal tool", "round", rc.Round, "skipped", skipped)
				}
				summary := components.Summarize(result)
				rc.Transcript.Append(AssistantMessage(summary))
				rc.Finish(summary)
				return StateDone, nil
			}
		}

		return StateRequesting, nil
	}
}

// dispatchCall runs a single invocation and returns the text recorded in the
// transcript. dispatched is false for unknown tools and for rejected calls to
// non-terminal tools; a rejected get_location_info yields a general payload and
// counts as dispatched. A non-nil error means the run's context ended.
func dispatchCall(ctx context.Context, components Components, eb eventbus.EventBus, rc *RunContext, call ToolInvocation) (string, bool, error) {
	logger := components.Logger.With("round", rc.Round, "tool", call.Name, "call_id", call.ID)

	tool, ok := components.Tools[call.Name]
	if !ok {
		logger.Warn("llm requested an unknown tool")
		publish(ctx, eb, eventbus.NewEvent(eventbus.EventToolUnknown, rc.RunID, rc.Round).
			WithTool(string(call.Name), call.ID))
		return fmt.Sprintf("Tool '%s' is not available.", call.Name), false, nil
	}

	if err := tool.Validate(call.Arguments); err != nil {
		logger.Warn("tool arguments rejected", "error", err)
		publish(ctx, eb, eventbus.NewEvent(eventbus.EventToolRejected, rc.RunID, rc.Round).
			WithTool(string(call.Name), call.ID).
			WithDetail(err.Error()))
		if call.Name.Terminal() {
			requested, _ := call.StringArg("name")
			return Failed(requested, NewValidationError(string(StateDispatching), "invalid arguments", err)).Encode(), true, nil
		}
		return fmt.Sprintf("Tool '%s' was called with invalid arguments: %v", call.Name, err), false, nil
	}

	publish(ctx, eb, eventbus.NewEvent(eventbus.EventToolDispatched, rc.RunID, rc.Round).
		WithTool(string(call.Name), call.ID).
		WithAttr("arguments", call.Arguments))
	logger.Debug("executing tool", "arguments", call.Arguments)

	start := time.Now()
	toolCtx, cancel := withOptionalTimeout(ctx, components.Config.ToolTimeout)
	result, err := tool.Execute(toolCtx, call.Arguments)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return "", true, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = NewTimeoutError(string(StateDispatching), err)
		}
		logger.Warn("tool execution failed", "error", err, "duration", elapsed)
		publish(ctx, eb, eventbus.NewEvent(eventbus.EventToolFailed, rc.RunID, rc.Round).
			WithTool(string(call.Name), call.ID).
			WithDetail(err.Error()))

		if call.Name.Terminal() {
			requested, _ := call.StringArg("name")
			return Failed(requested, err).Encode(), true, nil
		}
		return fmt.Sprintf("Tool '%s' failed: %v", call.Name, err), true, nil
	}

	logger.Debug("tool completed", "duration", elapsed, "result_length", len(result))
	publish(ctx, eb, eventbus.NewEvent(eventbus.EventToolCompleted, rc.RunID, rc.Round).
		WithTool(string(call.Name), call.ID).
		WithAttr("duration_ms", elapsed.Milliseconds()))
	return result, true, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
