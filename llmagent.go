package switchboard

import (
	"context"
	"log/slog"
	"strings"
)

// LLMAgent is an Agent backed by a chat Provider. It optionally augments its
// prompt with retrieved context and supports token streaming.
type LLMAgent struct {
	id           string
	name         string
	description  string
	provider     Provider
	systemPrompt string
	retriever    Retriever
	saveChat     bool
	streaming    bool
	callbacks    AgentCallbacks
	logger       *slog.Logger
	tracer       Tracer
}

var (
	_ Agent          = (*LLMAgent)(nil)
	_ StreamingAgent = (*LLMAgent)(nil)
)

// NewLLMAgent creates an agent over the given provider. The agent id is
// derived from name; see DeriveAgentID.
func NewLLMAgent(name, description string, provider Provider, opts ...AgentOption) *LLMAgent {
	cfg := buildAgentConfig(opts)
	return &LLMAgent{
		id:           DeriveAgentID(name),
		name:         name,
		description:  description,
		provider:     provider,
		systemPrompt: RenderTemplate(cfg.promptTmpl, cfg.promptVars),
		retriever:    cfg.retriever,
		saveChat:     cfg.saveChat,
		streaming:    cfg.streaming,
		callbacks:    cfg.callbacks,
		logger:       cfg.logger,
		tracer:       cfg.tracer,
	}
}

func (a *LLMAgent) ID() string          { return a.id }
func (a *LLMAgent) Name() string        { return a.name }
func (a *LLMAgent) Description() string { return a.description }
func (a *LLMAgent) SaveChat() bool      { return a.saveChat }
func (a *LLMAgent) Streaming() bool     { return a.streaming }

// ProcessRequest handles one utterance with a blocking provider call.
func (a *LLMAgent) ProcessRequest(ctx context.Context, req AgentRequest) (ConversationMessage, error) {
	ctx, span := a.startSpan(ctx, "agent.process", StringAttr("agent_id", a.id))
	defer span.End()

	resp, err := a.provider.Chat(ctx, ChatRequest{Messages: a.buildMessages(ctx, req)})
	if err != nil {
		span.Error(err)
		return ConversationMessage{}, err
	}
	return NewAssistantMessage(resp.Content), nil
}

// ProcessRequestStream handles one utterance, emitting EventToken events
// into ch while the provider streams. ch is closed when done.
func (a *LLMAgent) ProcessRequestStream(ctx context.Context, req AgentRequest, ch chan<- StreamEvent) (ConversationMessage, error) {
	ctx, span := a.startSpan(ctx, "agent.process_stream", StringAttr("agent_id", a.id))
	defer span.End()
	defer close(ch)

	chunks := make(chan string, streamBuffer)
	var (
		resp ChatResponse
		err  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err = a.provider.ChatStream(ctx, ChatRequest{Messages: a.buildMessages(ctx, req)}, chunks)
	}()

	var assembled strings.Builder
	for chunk := range chunks {
		assembled.WriteString(chunk)
		a.callbacks.OnLLMNewToken(chunk)
		ch <- StreamEvent{Type: EventToken, Token: chunk}
	}
	<-done

	if err != nil {
		span.Error(err)
		return ConversationMessage{}, err
	}
	text := resp.Content
	if text == "" {
		text = assembled.String()
	}
	return NewAssistantMessage(text), nil
}

// buildMessages assembles the provider request: system prompt plus retrieved
// context, the agent-scoped history, and the user input.
func (a *LLMAgent) buildMessages(ctx context.Context, req AgentRequest) []ChatMessage {
	var messages []ChatMessage

	prompt := a.systemPrompt
	if a.retriever != nil {
		retrieved, err := RetrieveAndCombineResults(ctx, a.retriever, req.Input)
		switch {
		case err != nil:
			// Retrieval is best-effort; answer without it.
			a.logger.Warn("retrieval failed", "agent_id", a.id, "error", err)
		case retrieved != "":
			if prompt != "" {
				prompt += "\n\n"
			}
			prompt += "Relevant context:\n" + retrieved
		}
	}
	if prompt != "" {
		messages = append(messages, SystemMessage(prompt))
	}

	for _, m := range req.History {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, AssistantMessage(text))
		case RoleUser:
			messages = append(messages, UserMessage(text))
		}
	}

	return append(messages, UserMessage(req.Input))
}

func (a *LLMAgent) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if a.tracer == nil {
		return ctx, nopSpan{}
	}
	return a.tracer.Start(ctx, name, attrs...)
}
