package switchboard

import (
	"context"
	"log/slog"
	"strings"
)

// Agent is a capability that turns one utterance plus prior history into a
// reply. Implementations range from single LLM agents (LLMAgent) to
// ensembles that own sub-agents (SupervisorAgent); the orchestrator treats
// them opaquely.
type Agent interface {
	// ID returns the stable agent identifier derived from its name.
	ID() string
	// Name returns the human-readable agent name.
	Name() string
	// Description returns what the agent does. The classifier includes it
	// in the selection prompt.
	Description() string
	// SaveChat reports whether the orchestrator should persist this
	// agent's exchanges.
	SaveChat() bool
	// Streaming reports whether the agent prefers to stream its reply.
	Streaming() bool
	// ProcessRequest handles one utterance and returns the complete reply.
	ProcessRequest(ctx context.Context, req AgentRequest) (ConversationMessage, error)
}

// StreamingAgent is an optional capability for agents that emit their reply
// incrementally. Check via type assertion:
//
//	if sa, ok := agent.(StreamingAgent); ok { ... }
type StreamingAgent interface {
	Agent
	// ProcessRequestStream handles one utterance like ProcessRequest, but
	// emits EventToken events into ch while the reply is produced. The
	// agent closes ch when done and returns the final assembled message.
	ProcessRequestStream(ctx context.Context, req AgentRequest, ch chan<- StreamEvent) (ConversationMessage, error)
}

// AgentRequest is the input to an Agent for a single turn.
type AgentRequest struct {
	// Input is the user utterance.
	Input string
	// UserID and SessionID identify the conversation scope.
	UserID    string
	SessionID string
	// History is the agent-scoped conversation so far, oldest first.
	History []ConversationMessage
	// Params carries optional caller-supplied hints, passed through opaquely.
	Params map[string]string
}

// agentConfig holds shared construction options for LLMAgent and
// SupervisorAgent.
type agentConfig struct {
	saveChat     bool
	streaming    bool
	callbacks    AgentCallbacks
	retriever    Retriever
	promptTmpl   string
	promptVars   map[string]string
	logger       *slog.Logger
	tracer       Tracer
}

// AgentOption configures a concrete agent at construction.
type AgentOption func(*agentConfig)

// WithSaveChat controls whether the orchestrator persists this agent's
// exchanges. Defaults to true.
func WithSaveChat(save bool) AgentOption {
	return func(c *agentConfig) { c.saveChat = save }
}

// WithStreaming marks the agent as preferring streamed replies.
func WithStreaming() AgentOption {
	return func(c *agentConfig) { c.streaming = true }
}

// WithCallbacks sets the notifier for agent start/end and streamed tokens.
func WithCallbacks(cb AgentCallbacks) AgentOption {
	return func(c *agentConfig) { c.callbacks = cb }
}

// WithRetriever sets an optional retriever consulted before the agent
// composes its prompt. The orchestrator is unaware of it.
func WithRetriever(r Retriever) AgentOption {
	return func(c *agentConfig) { c.retriever = r }
}

// WithSystemPrompt sets a custom system prompt template. The template may
// contain {{name}} placeholders substituted from vars; unresolved
// placeholders are left intact.
func WithSystemPrompt(template string, vars map[string]string) AgentOption {
	return func(c *agentConfig) {
		c.promptTmpl = template
		c.promptVars = vars
	}
}

// WithAgentLogger sets the structured logger for the agent. If not set, a
// no-op logger is used.
func WithAgentLogger(l *slog.Logger) AgentOption {
	return func(c *agentConfig) { c.logger = l }
}

// WithAgentTracer sets the tracer for the agent. Use observer.NewTracer()
// for an OTEL-backed implementation.
func WithAgentTracer(t Tracer) AgentOption {
	return func(c *agentConfig) { c.tracer = t }
}

func buildAgentConfig(opts []AgentOption) agentConfig {
	c := agentConfig{saveChat: true}
	for _, opt := range opts {
		opt(&c)
	}
	if c.callbacks == nil {
		c.callbacks = NopCallbacks{}
	}
	if c.logger == nil {
		c.logger = nopLogger
	}
	return c
}

// RenderTemplate substitutes {{name}} placeholders in template with the
// corresponding values from vars. Placeholders without a matching variable
// are left intact.
func RenderTemplate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
