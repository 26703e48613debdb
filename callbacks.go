package switchboard

import "context"

// AgentStartInfo describes a dispatch about to run.
type AgentStartInfo struct {
	AgentName string
	Input     string
	Messages  []ConversationMessage
	Params    map[string]string
	UserID    string
	SessionID string
}

// AgentEndInfo describes a completed dispatch.
type AgentEndInfo struct {
	AgentName    string
	Response     ConversationMessage
	Messages     []ConversationMessage
	TrackingInfo any
}

// AgentCallbacks is the observability surface for dispatch and streaming.
// OnAgentStart may return opaque tracking info that is handed back to
// OnAgentEnd for the same dispatch.
type AgentCallbacks interface {
	OnAgentStart(ctx context.Context, info AgentStartInfo) any
	OnAgentEnd(ctx context.Context, info AgentEndInfo)
	// OnLLMNewToken is invoked for every streamed token (streaming agents only).
	OnLLMNewToken(token string)
}

// NopCallbacks is an AgentCallbacks that does nothing.
type NopCallbacks struct{}

func (NopCallbacks) OnAgentStart(context.Context, AgentStartInfo) any { return nil }
func (NopCallbacks) OnAgentEnd(context.Context, AgentEndInfo)         {}
func (NopCallbacks) OnLLMNewToken(string)                             {}

var _ AgentCallbacks = NopCallbacks{}
