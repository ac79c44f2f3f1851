package placescout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"
)

// RunState represents the current state of an orchestration run.
type RunState string

const (
	// StateRequesting sends the transcript to the LLM
	StateRequesting RunState = "requesting"
	// StateDispatching executes the tool invocations of the last reply
	StateDispatching RunState = "dispatching"
	// StateDone holds a final answer
	StateDone RunState = "done"
	// StateFailed holds a fatal error
	StateFailed RunState = "failed"
	// StateCancelled is reached when the caller's context ends
	StateCancelled RunState = "cancelled"
)

// RunContext carries the data of one run between transitions.
type RunContext struct {
	RunID      string
	Transcript *Transcript

	// Round counts LLM requests made so far.
	Round int
	// Pending holds the reply whose tool calls are being dispatched.
	Pending *LLMReply

	FinalAnswer string
	LastError   error
	ErrorStage  string

	CurrentState RunState
	StartTime    time.Time
	EndTime      time.Time
}

// NewRunContext creates a run context positioned at StateRequesting.
func NewRunContext(runID string, transcript *Transcript) *RunContext {
	return &RunContext{
		RunID:        runID,
		Transcript:   transcript,
		CurrentState: StateRequesting,
		StartTime:    time.Now(),
	}
}

// IsTerminal checks if the current state is Done, Failed or Cancelled.
func (rc *RunContext) IsTerminal() bool {
	return rc.CurrentState == StateDone || rc.CurrentState == StateFailed || rc.CurrentState == StateCancelled
}

// Finish records the final answer and moves to StateDone.
func (rc *RunContext) Finish(answer string) {
	rc.FinalAnswer = answer
	rc.CurrentState = StateDone
	rc.EndTime = time.Now()
}

// SetError records a fatal error and moves to StateFailed.
func (rc *RunContext) SetError(err error, stage string) {
	rc.LastError = err
	rc.ErrorStage = stage
	rc.CurrentState = StateFailed
	rc.EndTime = time.Now()
}

// SetCancelled records the cancellation cause and moves to StateCancelled.
func (rc *RunContext) SetCancelled(err error, stage string) {
	rc.LastError = err
	rc.ErrorStage = stage
	rc.CurrentState = StateCancelled
	rc.EndTime = time.Now()
}

// Duration returns the run time so far, or the total once terminal.
func (rc *RunContext) Duration() time.Duration {
	if rc.EndTime.IsZero() {
		return time.Since(rc.StartTime)
	}
	return rc.EndTime.Sub(rc.StartTime)
}

// StateTransition runs the work of one state and names the next one.
type StateTransition func(ctx context.Context, eventBus eventbus.EventBus, rc *RunContext) (RunState, error)

// StateMachine drives a RunContext through registered transitions until it is terminal.
type StateMachine struct {
	transitions map[RunState]StateTransition
	eventBus    eventbus.EventBus
}

// NewStateMachine creates an empty state machine.
func NewStateMachine(eventBus eventbus.EventBus) *StateMachine {
	return &StateMachine{
		transitions: make(map[RunState]StateTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers the transition for a state.
func (sm *StateMachine) RegisterTransition(state RunState, transition StateTransition) {
	sm.transitions[state] = transition
}

// Execute runs transitions until the run is terminal and returns its outcome.
func (sm *StateMachine) Execute(ctx context.Context, rc *RunContext) (string, error) {
	for !rc.IsTerminal() {
		if err := ctx.Err(); err != nil {
			rc.SetCancelled(NewCancelledError(string(rc.CurrentState), err), string(rc.CurrentState))
			break
		}

		transition, exists := sm.transitions[rc.CurrentState]
		if !exists {
			rc.SetError(NewInternalError(string(rc.CurrentState), fmt.Sprintf("no transition defined for state: %s", rc.CurrentState), nil), string(rc.CurrentState))
			break
		}

		stage := string(rc.CurrentState)
		next, err := transition(ctx, sm.eventBus, rc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					rc.SetCancelled(NewCancelledError(stage, ctx.Err()), stage)
					continue
				}
			}
			if !rc.IsTerminal() {
				rc.SetError(err, stage)
			}
			continue
		}

		if !rc.IsTerminal() {
			rc.CurrentState = next
		}
	}

	if rc.CurrentState == StateDone {
		return rc.FinalAnswer, nil
	}
	return "", rc.LastError
}
