package placescout

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleSystem carries the operator instructions.
	RoleSystem Role = "system"
	// RoleUser carries the end user's question.
	RoleUser Role = "user"
	// RoleAssistant carries LLM output and the loop's final summary.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of one tool invocation.
	RoleTool Role = "tool"
)

// ToolName names one capability in the catalog.
type ToolName string

const (
	ToolGetPublicIP     ToolName = "get_public_ip"
	ToolGetLocation     ToolName = "get_location"
	ToolGetLocationInfo ToolName = "get_location_info"
)

// Known reports whether the name belongs to the catalog.
func (n ToolName) Known() bool {
	switch n {
	case ToolGetPublicIP, ToolGetLocation, ToolGetLocationInfo:
		return true
	default:
		return false
	}
}

// Terminal reports whether a result of this tool ends the run.
func (n ToolName) Terminal() bool {
	return n == ToolGetLocationInfo
}

// ToolInvocation is a structured request, emitted by the LLM, to run one tool.
type ToolInvocation struct {
	ID        string         `json:"id"`
	Name      ToolName       `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StringArg returns the named argument as a string when it is one.
func (ti ToolInvocation) StringArg(key string) (string, bool) {
	v, ok := ti.Arguments[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Message is one entry of a transcript.
type Message struct {
	Role       Role             `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"` // Set on RoleTool messages
	Name       string           `json:"name,omitempty"`         // Tool name on RoleTool messages
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message, optionally recording requested invocations.
func AssistantMessage(content string, calls ...ToolInvocation) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage builds the tool-result message answering an invocation.
func ToolResultMessage(call ToolInvocation, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       string(call.Name),
	}
}

// Transcript is the ordered conversation history exchanged with the LLM.
// It is append-only while a run is in progress.
type Transcript struct {
	messages []Message
}

// NewTranscript creates a transcript seeded with the given messages.
func NewTranscript(messages ...Message) *Transcript {
	t := &Transcript{messages: make([]Message, 0, len(messages)+8)}
	t.messages = append(t.messages, messages...)
	return t
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the transcript contents.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LLMReply is the LLM's answer to one request: either tool invocations or final text.
type LLMReply struct {
	Content   string
	ToolCalls []ToolInvocation
}

// Article is an encyclopedia page as returned by the encyclopedia collaborator.
type Article struct {
	Title   string
	URL     string
	Content string
}
