package domain

import (
	"strings"
	"time"
)

// Observation records one environment transition as seen by the agent.
type Observation struct {
	ID          string         `json:"id"`
	EpisodeID   string         `json:"episodeId"`
	DecisionID  string         `json:"decisionId,omitempty"`
	Goal        string         `json:"goal,omitempty"`
	PrevState   *ObservedState `json:"prevState,omitempty"`
	Event       *Event         `json:"event,omitempty"`
	State       ObservedState  `json:"state"`
	MachineHash string         `json:"machineHash,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ObservationInput is the caller-supplied part of an Observation. Missing ids,
// episode and timestamp are filled in when the observation is recorded.
type ObservationInput struct {
	ID          string
	EpisodeID   string
	DecisionID  string
	Goal        string
	PrevState   *ObservedState
	Event       *Event
	State       ObservedState
	MachineHash string
	Timestamp   time.Time
}

// Feedback scores a prior observation or decision.
type Feedback struct {
	ObservationID string         `json:"observationId,omitempty"`
	DecisionID    string         `json:"decisionId,omitempty"`
	Score         float64        `json:"score"`
	Comment       string         `json:"comment,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	EpisodeID     string         `json:"episodeId"`
	Timestamp     time.Time      `json:"timestamp"`
}

// FeedbackInput is the caller-supplied part of a Feedback.
type FeedbackInput struct {
	ObservationID string         `json:"observationId,omitempty"`
	DecisionID    string         `json:"decisionId,omitempty"`
	Score         float64        `json:"score"`
	Comment       string         `json:"comment,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	EpisodeID     string         `json:"episodeId,omitempty"`
	Timestamp     time.Time      `json:"timestamp,omitzero"`
}

// Validate enforces that exactly one correlation id is set.
func (in FeedbackInput) Validate() error {
	hasObs := strings.TrimSpace(in.ObservationID) != ""
	hasDec := strings.TrimSpace(in.DecisionID) != ""
	if hasObs == hasDec {
		return ErrFeedbackCorrelation
	}
	return nil
}

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates message content parts.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartImage      PartType = "image"
)

// Part is one piece of message content.
type Part struct {
	Type       PartType       `json:"type"`
	Text       string         `json:"text,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Result     any            `json:"result,omitempty"`
	IsError    bool           `json:"isError,omitempty"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	MimeType   string         `json:"mimeType,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// ToolCallPart builds a tool-call content part.
func ToolCallPart(call ToolCall) Part {
	return Part{Type: PartToolCall, ToolCallID: call.ID, ToolName: call.Name, Args: call.Args}
}

// ToolResultPart builds a tool-result content part.
func ToolResultPart(callID, toolName string, result any, isError bool) Part {
	return Part{Type: PartToolResult, ToolCallID: callID, ToolName: toolName, Result: result, IsError: isError}
}

// Message is one entry of a conversation transcript.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    []Part    `json:"content"`
	EpisodeID  string    `json:"episodeId,omitempty"`
	ResponseID string    `json:"responseId,omitempty"` // Id of the message this one answers
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// NewMessage builds an unrecorded message.
func NewMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Content: parts}
}

// UserMessage builds a single-text user message.
func UserMessage(text string) Message { return NewMessage(RoleUser, TextPart(text)) }

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool-call parts of the message.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Content {
		if p.Type == PartToolCall {
			calls = append(calls, ToolCall{ID: p.ToolCallID, Name: p.ToolName, Args: p.Args})
		}
	}
	return calls
}
