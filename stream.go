package switchboard

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

const (
	// EventStart signals that the selected agent has begun producing a reply.
	EventStart StreamEventType = "start"
	// EventToken carries an incremental text chunk of the reply.
	EventToken StreamEventType = "token"
	// EventEnd carries the final assembled assistant message. It is the
	// last event before the channel closes on success.
	EventEnd StreamEventType = "end"
	// EventError signals that the stream failed mid-way. Tokens already
	// delivered are considered delivered.
	EventError StreamEventType = "error"
)

// StreamEvent is a typed event emitted while an agent streams its reply.
// Single producer (the agent), single consumer (the orchestrator or the
// caller); the channel is closed after EventEnd or EventError.
type StreamEvent struct {
	Type  StreamEventType
	// Token is set for EventToken.
	Token string
	// Final is set for EventEnd.
	Final ConversationMessage
	// Err is set for EventError.
	Err error
}
