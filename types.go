package switchboard

import "strings"

// ParticipantRole identifies who produced a conversation turn.
type ParticipantRole string

const (
	RoleUser      ParticipantRole = "user"
	RoleAssistant ParticipantRole = "assistant"
	RoleSystem    ParticipantRole = "system"
	RoleTool      ParticipantRole = "tool"
)

// ContentBlock kinds. The router itself only inspects text blocks; other
// kinds pass through opaquely between agent and storage.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// ContentBlock is one tagged element of a turn's content. Text carries the
// payload for Kind == BlockText; Raw carries the opaque payload for every
// other kind.
type ContentBlock struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
	Raw  []byte `json:"raw,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// ConversationMessage is one turn of a conversation. Content is always a
// sequence, possibly of length one; an empty sequence means "no textual
// output".
type ConversationMessage struct {
	Role    ParticipantRole `json:"role"`
	Content []ContentBlock  `json:"content"`
}

// Text returns the message's text blocks joined with newlines, skipping
// empty blocks and non-text kinds.
func (m ConversationMessage) Text() string {
	var parts []string
	for _, b := range m.Content {
		if b.Kind == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether the message carries no textual content at all.
func (m ConversationMessage) Empty() bool {
	return m.Text() == ""
}

// NewUserMessage creates a user turn with a single text block.
func NewUserMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// NewAssistantMessage creates an assistant turn with a single text block.
func NewAssistantMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// NewSystemMessage creates a system turn with a single text block.
func NewSystemMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleSystem, Content: []ContentBlock{TextBlock(text)}}
}

// NewToolMessage creates a tool turn with a single text block.
func NewToolMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleTool, Content: []ContentBlock{TextBlock(text)}}
}

// TimestampedMessage is the stored form of a ConversationMessage. Timestamp
// is Unix milliseconds, assigned at write time when absent.
type TimestampedMessage struct {
	ConversationMessage
	Timestamp int64 `json:"timestamp"`
}

// ClassifierResult is the outcome of one classification attempt. A nil
// SelectedAgent means "no selection"; Confidence is in [0, 1].
type ClassifierResult struct {
	SelectedAgent Agent
	Confidence    float64
}

// ResponseMetadata describes which agent handled a request and for whom.
type ResponseMetadata struct {
	AgentID          string            `json:"agent_id"`
	AgentName        string            `json:"agent_name"`
	UserInput        string            `json:"user_input"`
	UserID           string            `json:"user_id"`
	SessionID        string            `json:"session_id"`
	AdditionalParams map[string]string `json:"additional_params,omitempty"`
}

// AgentResponse is the envelope returned by the orchestrator for one turn.
//
// For non-streaming agents, Output holds the complete assistant turn and
// Stream is nil. For streaming agents, Streaming is true and the caller
// consumes Stream; the final assembled message arrives in the EventEnd
// event, after which the channel is closed.
type AgentResponse struct {
	Metadata  ResponseMetadata
	Output    ConversationMessage
	Stream    <-chan StreamEvent
	Streaming bool
}
