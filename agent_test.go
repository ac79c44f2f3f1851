package placescout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"
)

// scriptedLLM replays canned replies and records every transcript it receives.
type scriptedLLM struct {
	replies []LLMReply
	err     error
	block   bool

	calls [][]Message
}

func (s *scriptedLLM) Next(ctx context.Context, transcript []Message, tools []ToolSpec) (LLMReply, error) {
	s.calls = append(s.calls, transcript)
	if s.block {
		<-ctx.Done()
		return LLMReply{}, ctx.Err()
	}
	if s.err != nil {
		return LLMReply{}, s.err
	}
	if len(s.calls) > len(s.replies) {
		return LLMReply{}, nil
	}
	return s.replies[len(s.calls)-1], nil
}

// fakeTool returns a fixed result and counts executions.
type fakeTool struct {
	name   ToolName
	result string
	err    error
	delay  time.Duration

	mu       sync.Mutex
	executed []map[string]any
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	f.mu.Lock()
	f.executed = append(f.executed, args)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeTool) Spec() ToolSpec { return MustSpec(f.name) }

func (f *fakeTool) Validate(args map[string]any) error {
	for _, p := range f.Spec().Parameters.Required {
		if s, ok := args[p].(string); !ok || s == "" {
			return errors.New("missing " + p)
		}
	}
	return nil
}

func (f *fakeTool) Name() ToolName { return f.name }

func (f *fakeTool) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

const praguePayload = `{"requested":"Prague","resolved_title":"Prague","url":"https://en.wikipedia.org/wiki/Prague","excerpt":"Prague is the capital and largest city of the Czech Republic."}`

type toolset struct {
	ip, geo, info *fakeTool
}

func newToolset() toolset {
	return toolset{
		ip:   &fakeTool{name: ToolGetPublicIP, result: "203.0.113.7"},
		geo:  &fakeTool{name: ToolGetLocation, result: `{"status":"success","city":"Prague"}`},
		info: &fakeTool{name: ToolGetLocationInfo, result: praguePayload},
	}
}

func (ts toolset) all() []Tool { return []Tool{ts.ip, ts.geo, ts.info} }

func call(id string, name ToolName, args map[string]any) ToolInvocation {
	return ToolInvocation{ID: id, Name: name, Arguments: args}
}

func newTranscript(question string) *Transcript {
	return NewTranscript(SystemMessage("rules"), UserMessage(question))
}

func newAgent(t *testing.T, llm LLM, ts toolset, options ...Option) *Agent {
	t.Helper()
	a, err := New(append([]Option{WithLLM(llm), WithTools(ts.all()...)}, options...)...)
	require.NoError(t, err)
	return a
}

func TestAgent_DirectCityQuestion(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}
	transcript := newTranscript("Tell me facts about Prague")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Contains(t, answer, "Prague")
	assert.Contains(t, answer, "wikipedia")
	assert.Zero(t, ts.ip.count())
	assert.Zero(t, ts.geo.count())
	assert.Equal(t, 1, ts.info.count())
	assert.Len(t, llm.calls, 1)

	msgs := transcript.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
	assert.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, RoleTool, msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, praguePayload, msgs[3].Content)
	assert.Equal(t, AssistantMessage(answer), msgs[4])
}

func TestAgent_WhereAmISequence(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetPublicIP, map[string]any{})}},
		{ToolCalls: []ToolInvocation{call("c2", ToolGetLocation, map[string]any{"ip_address": "203.0.113.7"})}},
		{ToolCalls: []ToolInvocation{call("c3", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}
	transcript := newTranscript("Where am I?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer, "Prague: "))
	assert.Equal(t, 1, ts.ip.count())
	assert.Equal(t, 1, ts.geo.count())
	assert.Equal(t, 1, ts.info.count())
	require.Len(t, llm.calls, 3)

	// The second request sees the IP result, the third sees the location record.
	last := llm.calls[1][len(llm.calls[1])-1]
	assert.Equal(t, ToolResultMessage(call("c1", ToolGetPublicIP, nil), "203.0.113.7"), last)
	last = llm.calls[2][len(llm.calls[2])-1]
	assert.Equal(t, "c2", last.ToolCallID)
	assert.Contains(t, last.Content, `"city":"Prague"`)
}

func TestAgent_FinalTextAnswer(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetPublicIP, nil)}},
		{Content: "Your public IP is 203.0.113.7."},
	}}
	transcript := newTranscript("What is my IP?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Equal(t, "Your public IP is 203.0.113.7.", answer)
	last, ok := transcript.Last()
	require.True(t, ok)
	assert.Equal(t, AssistantMessage(answer), last)
}

func TestAgent_FailsAfterExactlyMaxRounds(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{} // never answers, never calls a tool
	transcript := newTranscript("Hello?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.Error(t, err)
	assert.Empty(t, answer)
	assert.True(t, errors.Is(err, ErrIterationLimitExceeded))
	assert.Equal(t, ErrCodeIterationLimit, ErrorCode(err))
	assert.Len(t, llm.calls, 5)
	assert.Equal(t, 2, transcript.Len(), "empty replies add nothing to the transcript")
}

func TestAgent_ToolLoopHitsIterationLimit(t *testing.T) {
	ts := newToolset()
	replies := make([]LLMReply, 10)
	for i := range replies {
		replies[i] = LLMReply{ToolCalls: []ToolInvocation{call("", ToolGetPublicIP, nil)}}
	}
	llm := &scriptedLLM{replies: replies}

	_, err := newAgent(t, llm, ts, WithConfig(Config{MaxIterations: 3})).Run(context.Background(), newTranscript("loop"))

	assert.True(t, errors.Is(err, ErrIterationLimitExceeded))
	assert.Len(t, llm.calls, 3)
	assert.Equal(t, 3, ts.ip.count())
}

func TestAgent_UnknownToolIsNotFatal(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", "get_weather", map[string]any{"city": "Prague"})}},
		{Content: "I cannot check the weather."},
	}}
	transcript := newTranscript("Weather?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Equal(t, "I cannot check the weather.", answer)
	msgs := transcript.Messages()
	assert.Equal(t, "Tool 'get_weather' is not available.", msgs[3].Content)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}

func TestAgent_InvalidArgumentsAreReportedToTheLLM(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocation, map[string]any{})}},
		{ToolCalls: []ToolInvocation{call("c2", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}
	transcript := newTranscript("Where am I?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Contains(t, answer, "Prague")
	assert.Zero(t, ts.geo.count(), "rejected call is never executed")
	assert.Equal(t, "Tool 'get_location' was called with invalid arguments: missing ip_address", transcript.Messages()[3].Content)
	assert.Len(t, llm.calls, 2)
}

func TestAgent_InvalidFactsLookupEndsRun(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing name", map[string]any{}},
		{"empty name", map[string]any{"name": ""}},
		{"non-string name", map[string]any{"name": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newToolset()
			llm := &scriptedLLM{replies: []LLMReply{
				{ToolCalls: []ToolInvocation{call("c1", ToolGetLocationInfo, tt.args)}},
				{Content: "unreachable"},
			}}
			transcript := newTranscript("Facts please")

			answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

			require.NoError(t, err)
			assert.Equal(t, "Error fetching facts (general). Try again later.", answer)
			assert.Len(t, llm.calls, 1)
			assert.Zero(t, ts.info.count())

			msgs := transcript.Messages()
			require.Len(t, msgs, 5)
			payload, err := ParseResolution(msgs[3].Content)
			require.NoError(t, err)
			assert.Equal(t, ResolutionFailed, payload.Kind)
			assert.Contains(t, payload.Details, "invalid arguments")
			assert.Equal(t, AssistantMessage(answer), msgs[4])
		})
	}
}

func TestAgent_CallsAfterFactsLookupAreSkipped(t *testing.T) {
	ts := newToolset()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{
			call("c1", ToolGetPublicIP, nil),
			call("c2", ToolGetLocationInfo, map[string]any{"name": "Prague"}),
			call("c3", ToolGetLocation, map[string]any{"ip_address": "203.0.113.7"}),
		}},
	}}
	transcript := newTranscript("Where am I?")

	_, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Equal(t, 1, ts.ip.count())
	assert.Equal(t, 1, ts.info.count())
	assert.Zero(t, ts.geo.count())

	var results []string
	for _, m := range transcript.Messages() {
		if m.Role == RoleTool {
			results = append(results, m.ToolCallID)
		}
	}
	assert.Equal(t, []string{"c1", "c2"}, results)
}

func TestAgent_ToolFailureIsRecoverable(t *testing.T) {
	ts := newToolset()
	ts.ip.err = errors.New("dial tcp: connection refused")
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetPublicIP, nil)}},
		{Content: "I could not determine your IP address."},
	}}
	transcript := newTranscript("Where am I?")

	answer, err := newAgent(t, llm, ts).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Equal(t, "I could not determine your IP address.", answer)
	assert.Contains(t, transcript.Messages()[3].Content, "Tool 'get_public_ip' failed")
}

func TestAgent_ToolTimeoutIsRecoverable(t *testing.T) {
	ts := newToolset()
	ts.geo.delay = time.Second
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocation, map[string]any{"ip_address": "203.0.113.7"})}},
		{Content: "The location service is slow right now."},
	}}
	cfg := DefaultConfig()
	cfg.ToolTimeout = 20 * time.Millisecond
	transcript := newTranscript("Where am I?")

	answer, err := newAgent(t, llm, ts, WithConfig(cfg)).Run(context.Background(), transcript)

	require.NoError(t, err)
	assert.Equal(t, "The location service is slow right now.", answer)
	assert.Contains(t, transcript.Messages()[3].Content, "timed out")
}

func TestAgent_FactsLookupFailureStillTerminates(t *testing.T) {
	ts := newToolset()
	ts.info.err = errors.New("boom")
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}

	answer, err := newAgent(t, llm, ts).Run(context.Background(), newTranscript("Prague?"))

	require.NoError(t, err)
	assert.Equal(t, "Error fetching facts (general). Try again later.", answer)
	assert.Len(t, llm.calls, 1)
}

func TestAgent_DisambiguationIsSummarized(t *testing.T) {
	ts := newToolset()
	ts.info.result = Disambiguated("Springfield", []string{"A", "B", "C", "D", "E", "F", "G"}).Encode()
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocationInfo, map[string]any{"name": "Springfield"})}},
	}}

	answer, err := newAgent(t, llm, ts).Run(context.Background(), newTranscript("Springfield?"))

	require.NoError(t, err)
	assert.Equal(t, "Multiple possible matches: A, B, C, D, E. Please specify more details (country/region).", answer)
	assert.Len(t, llm.calls, 1, "no further LLM round after the facts lookup")
}

func TestAgent_LLMErrorFailsRun(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model overloaded")}

	_, err := newAgent(t, llm, newToolset()).Run(context.Background(), newTranscript("Hi"))

	require.Error(t, err)
	assert.Equal(t, ErrCodeExternalService, ErrorCode(err))
}

func TestAgent_Cancellation(t *testing.T) {
	llm := &scriptedLLM{block: true}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newAgent(t, llm, newToolset()).Run(ctx, newTranscript("Hi"))

	require.Error(t, err)
	assert.Equal(t, ErrCodeCancelled, ErrorCode(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAgent_CustomSummarizer(t *testing.T) {
	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}
	a := newAgent(t, llm, newToolset(), WithSummarizer(func(string) string { return "custom" }))

	answer, err := a.Run(context.Background(), newTranscript("Prague?"))

	require.NoError(t, err)
	assert.Equal(t, "custom", answer)
}

func TestAgent_PublishesRunEvents(t *testing.T) {
	bus := eventbus.NewChannelEventBus(eventbus.WithWorkerCount(1))
	var mu sync.Mutex
	var types []eventbus.EventType
	_, err := bus.SubscribeAll(func(_ context.Context, e eventbus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
		return nil
	})
	require.NoError(t, err)

	llm := &scriptedLLM{replies: []LLMReply{
		{ToolCalls: []ToolInvocation{call("c1", "get_weather", nil)}},
		{ToolCalls: []ToolInvocation{call("c2", ToolGetLocationInfo, map[string]any{"name": "Prague"})}},
	}}
	a := newAgent(t, llm, newToolset(), WithEventBus(bus))

	_, err = a.Run(context.Background(), newTranscript("Prague?"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []eventbus.EventType{
		eventbus.EventRunStarted,
		eventbus.EventRoundStarted,
		eventbus.EventLLMReplied,
		eventbus.EventToolUnknown,
		eventbus.EventRoundStarted,
		eventbus.EventLLMReplied,
		eventbus.EventToolDispatched,
		eventbus.EventToolCompleted,
		eventbus.EventRunCompleted,
	}, types)
}

func TestNew_Validation(t *testing.T) {
	ts := newToolset()

	_, err := New(WithTools(ts.all()...))
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err), "missing llm")

	_, err = New(WithLLM(&scriptedLLM{}))
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err), "missing tools")

	_, err = New(WithLLM(&scriptedLLM{}), WithTools(&fakeTool{name: "calculate"}))
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err), "tool outside the catalog")

	_, err = New(WithLLM(&scriptedLLM{}), WithTools(ts.all()...), WithConfig(Config{}))
	assert.Equal(t, ErrCodeConfiguration, ErrorCode(err), "zero iterations")

	a, err := New(WithLLM(&scriptedLLM{}), WithTools(ts.info, ts.ip))
	require.NoError(t, err)
	assert.Equal(t, []ToolName{ToolGetPublicIP, ToolGetLocationInfo}, a.ListTools())
	assert.Nil(t, a.EventBus())
}
