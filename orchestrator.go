package switchboard

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Config is the orchestrator's flat option record. Build it once and pass it
// to New; the orchestrator is not reconfigured after construction.
type Config struct {
	// LogAgentChat includes per-agent chat history in operational logs.
	LogAgentChat bool
	// LogClassifierChat logs the merged history handed to the classifier.
	LogClassifierChat bool
	// LogClassifierRawOutput logs every raw classifier result.
	LogClassifierRawOutput bool
	// LogClassifierOutput logs the reconciled selection.
	LogClassifierOutput bool
	// LogExecutionTimes records wall-clock duration per stage.
	LogExecutionTimes bool
	// MaxRetries is how many extra classifier attempts are made after a
	// hard failure or an empty selection.
	MaxRetries int
	// UseDefaultAgentIfNoneIdentified falls through to the registry's
	// default agent when classification yields no agent. When false, the
	// turn ends with NoSelectedAgentMessage instead.
	UseDefaultAgentIfNoneIdentified bool
	// ClassificationErrorMessage is the caller-facing text returned when
	// classification fails hard after retries.
	ClassificationErrorMessage string
	// NoSelectedAgentMessage is the caller-facing text returned when no
	// agent is selected and the default fallback is disabled.
	NoSelectedAgentMessage string
	// GeneralRoutingErrorMessage backs the two texts above when they are
	// unset.
	GeneralRoutingErrorMessage string
	// MaxMessagePairsPerAgent bounds each agent's stored history; a pair
	// is one user turn plus one assistant turn, so logs are trimmed to
	// twice this value.
	MaxMessagePairsPerAgent int
}

const (
	defaultNoSelectedAgentMessage = "I'm not sure how to help with that. Could you rephrase your request or be more specific?"
	defaultRoutingErrorMessage    = "Something went wrong while routing your request. Please try again."

	// Markers appended to a persisted assistant turn when its stream did
	// not complete normally.
	streamErrorMarker     = "[response interrupted]"
	streamTruncatedMarker = "[response truncated]"

	streamBuffer = 64
)

// DefaultConfig returns the stock orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:                      3,
		UseDefaultAgentIfNoneIdentified: true,
		MaxMessagePairsPerAgent:         100,
	}
}

// Orchestrator is the single entry point in front of the registered agents:
// it classifies each utterance, dispatches it to the chosen agent, persists
// both sides of the exchange, and returns the response envelope. It holds no
// per-turn state; concurrent RouteRequest calls are independent.
type Orchestrator struct {
	cfg        Config
	registry   *Registry
	classifier Classifier
	storage    ChatStorage
	callbacks  AgentCallbacks
	logger     *slog.Logger
	tracer     Tracer
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithClassifier sets the classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithStorage sets the chat storage backend.
func WithStorage(s ChatStorage) Option {
	return func(o *Orchestrator) { o.storage = s }
}

// WithOrchestratorCallbacks sets the dispatch/streaming notifier.
func WithOrchestratorCallbacks(cb AgentCallbacks) Option {
	return func(o *Orchestrator) { o.callbacks = cb }
}

// WithLogger sets the structured logger. If not set, a no-op logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the tracer. Use observer.NewTracer() for an OTEL-backed
// implementation.
func WithTracer(t Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// New creates an Orchestrator with the given configuration.
func New(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		registry:  NewRegistry(),
		callbacks: NopCallbacks{},
		logger:    nopLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the orchestrator's agent registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// AddAgent registers an agent. A duplicate id is a configuration error.
func (o *Orchestrator) AddAgent(a Agent) error { return o.registry.Add(a) }

// SetDefaultAgent designates the fallback agent used when classification
// yields no selection and the config opts in.
func (o *Orchestrator) SetDefaultAgent(id string) error { return o.registry.SetDefault(id) }

// SetClassifier replaces the classifier. Must be called before the first
// RouteRequest.
func (o *Orchestrator) SetClassifier(c Classifier) { o.classifier = c }

// SetStorage replaces the chat storage backend. Must be called before the
// first RouteRequest.
func (o *Orchestrator) SetStorage(s ChatStorage) { o.storage = s }

// RouteRequest handles one turn: classify the input against the merged
// history, reconcile the selection, dispatch to the chosen agent, persist
// the exchange, and return the response envelope.
//
// Terminal classification and selection failures return a fabricated
// assistant message and a nil error; dispatch failures return a
// *DispatchError; caller cancellation returns the context error.
func (o *Orchestrator) RouteRequest(ctx context.Context, input, userID, sessionID string, params map[string]string) (AgentResponse, error) {
	if o.classifier == nil {
		return AgentResponse{}, ErrClassifierUnset
	}
	if o.storage == nil {
		return AgentResponse{}, ErrStorageUnset
	}
	ctx, span := o.startSpan(ctx, "orchestrator.route",
		StringAttr("user_id", userID), StringAttr("session_id", sessionID))
	defer span.End()

	merged := o.fetchMergedHistory(ctx, userID, sessionID)

	result, err := o.classifyWithRetry(ctx, input, merged)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancellation, not a classifier fault.
			return AgentResponse{}, ctx.Err()
		}
		span.Error(err)
		o.logger.Error("classification failed", "user_id", userID, "session_id", sessionID, "error", err)
		return o.terminalResponse(input, userID, sessionID, params, o.classificationErrorText()), nil
	}

	selected := result.SelectedAgent
	if selected == nil {
		if !o.cfg.UseDefaultAgentIfNoneIdentified {
			o.logger.Info("no agent selected", "user_id", userID, "session_id", sessionID)
			return o.terminalResponse(input, userID, sessionID, params, o.noSelectionText()), nil
		}
		d, ok := o.registry.Default()
		if !ok {
			return AgentResponse{}, ErrNoDefaultAgent
		}
		selected = d
	}
	if o.cfg.LogClassifierOutput {
		o.logger.Info("agent selected", "agent_id", selected.ID(), "confidence", result.Confidence)
	}
	span.SetAttr(StringAttr("agent_id", selected.ID()))

	return o.dispatch(ctx, selected, input, userID, sessionID, params, selected.Streaming())
}

// AgentProcessRequest bypasses classification when the caller has already
// chosen an agent. It is observationally equivalent to RouteRequest with a
// classifier that returns the given result.
func (o *Orchestrator) AgentProcessRequest(ctx context.Context, input, userID, sessionID string, result ClassifierResult, params map[string]string, stream bool) (AgentResponse, error) {
	if o.storage == nil {
		return AgentResponse{}, ErrStorageUnset
	}
	selected := result.SelectedAgent
	if selected == nil {
		if !o.cfg.UseDefaultAgentIfNoneIdentified {
			return o.terminalResponse(input, userID, sessionID, params, o.noSelectionText()), nil
		}
		d, ok := o.registry.Default()
		if !ok {
			return AgentResponse{}, ErrNoDefaultAgent
		}
		selected = d
	}
	return o.dispatch(ctx, selected, input, userID, sessionID, params, stream)
}

// fetchMergedHistory reads the cross-agent merged view. Read failures
// degrade to an empty history so the turn can proceed.
func (o *Orchestrator) fetchMergedHistory(ctx context.Context, userID, sessionID string) []ConversationMessage {
	start := time.Now()
	merged, err := o.storage.FetchAllChats(ctx, userID, sessionID)
	if err != nil {
		o.logger.Warn("fetch merged history failed, continuing with empty history",
			"user_id", userID, "session_id", sessionID, "error", err)
		return nil
	}
	if o.cfg.LogExecutionTimes {
		o.logger.Info("merged history fetched", "messages", len(merged), "elapsed", time.Since(start))
	}
	if o.cfg.LogClassifierChat {
		o.logger.Debug("classifier history", "messages", chatTexts(merged))
	}
	return merged
}

// classifyWithRetry runs the classifier up to 1+MaxRetries times. Hard
// failures and empty selections both consume attempts; a hard failure on the
// last attempt is terminal, while a final empty selection is handed to
// reconciliation.
func (o *Orchestrator) classifyWithRetry(ctx context.Context, input string, history []ConversationMessage) (ClassifierResult, error) {
	attempts := 1 + max(o.cfg.MaxRetries, 0)
	var result ClassifierResult
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return ClassifierResult{}, err
		}
		start := time.Now()
		result, lastErr = o.classifier.Classify(ctx, input, history)
		if o.cfg.LogExecutionTimes {
			o.logger.Info("classifier attempt", "attempt", i+1, "elapsed", time.Since(start))
		}
		if lastErr != nil {
			o.logger.Warn("classifier attempt failed", "attempt", i+1, "error", lastErr)
			continue
		}
		if o.cfg.LogClassifierRawOutput {
			o.logger.Debug("classifier raw output",
				"agent_id", agentID(result.SelectedAgent), "confidence", result.Confidence)
		}
		if result.SelectedAgent != nil {
			return result, nil
		}
	}
	if lastErr != nil {
		return ClassifierResult{}, &ClassificationError{Attempts: attempts, Err: lastErr}
	}
	return result, nil
}

// dispatch invokes the selected agent with its own scoped history and
// persists the exchange afterwards.
func (o *Orchestrator) dispatch(ctx context.Context, agent Agent, input, userID, sessionID string, params map[string]string, stream bool) (AgentResponse, error) {
	bound := o.pairBound()
	history, err := o.storage.FetchChat(ctx, userID, sessionID, agent.ID(), bound)
	if err != nil {
		o.logger.Warn("fetch agent history failed, continuing with empty history",
			"agent_id", agent.ID(), "error", err)
		history = nil
	}
	if o.cfg.LogAgentChat {
		o.logger.Debug("agent history", "agent_id", agent.ID(), "messages", chatTexts(history))
	}

	req := AgentRequest{
		Input:     input,
		UserID:    userID,
		SessionID: sessionID,
		History:   history,
		Params:    params,
	}
	meta := ResponseMetadata{
		AgentID:          agent.ID(),
		AgentName:        agent.Name(),
		UserInput:        input,
		UserID:           userID,
		SessionID:        sessionID,
		AdditionalParams: params,
	}
	tracking := o.callbacks.OnAgentStart(ctx, AgentStartInfo{
		AgentName: agent.Name(),
		Input:     input,
		Messages:  history,
		Params:    params,
		UserID:    userID,
		SessionID: sessionID,
	})

	if stream {
		if sa, ok := agent.(StreamingAgent); ok {
			return o.dispatchStream(ctx, sa, req, meta, tracking), nil
		}
		// Agent flagged as streaming without the capability; degrade to a
		// blocking call.
		o.logger.Warn("agent does not implement StreamingAgent, dispatching blocking", "agent_id", agent.ID())
	}

	start := time.Now()
	reply, err := agent.ProcessRequest(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return AgentResponse{}, ctx.Err()
		}
		return AgentResponse{}, &DispatchError{AgentID: agent.ID(), Err: err}
	}
	if o.cfg.LogExecutionTimes {
		o.logger.Info("agent dispatched", "agent_id", agent.ID(), "elapsed", time.Since(start))
	}

	o.callbacks.OnAgentEnd(ctx, AgentEndInfo{
		AgentName:    agent.Name(),
		Response:     reply,
		Messages:     history,
		TrackingInfo: tracking,
	})
	o.persistExchange(ctx, agent, userID, sessionID, input, reply)

	return AgentResponse{Metadata: meta, Output: reply, Streaming: false}, nil
}

// dispatchStream runs a streaming agent and returns the envelope
// immediately. The goroutine forwards the agent's events to the caller,
// accumulates the text, and persists the assistant turn once the stream
// completes; mid-stream failures persist the partial text with a marker.
func (o *Orchestrator) dispatchStream(ctx context.Context, agent StreamingAgent, req AgentRequest, meta ResponseMetadata, tracking any) AgentResponse {
	out := make(chan StreamEvent, streamBuffer)

	go func() {
		defer close(out)
		out <- StreamEvent{Type: EventStart}

		inner := make(chan StreamEvent, streamBuffer)
		var (
			final    ConversationMessage
			agentErr error
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			final, agentErr = agent.ProcessRequestStream(ctx, req, inner)
		}()

		var assembled strings.Builder
		for ev := range inner {
			if ev.Type == EventToken {
				assembled.WriteString(ev.Token)
				o.callbacks.OnLLMNewToken(ev.Token)
			}
			out <- ev
		}
		<-done

		text := assembled.String()
		switch {
		case ctx.Err() != nil:
			// Canceled: what was streamed is delivered; persist it with a
			// truncation marker.
			o.persistPartial(context.WithoutCancel(ctx), agent, req, text, streamTruncatedMarker)
			out <- StreamEvent{Type: EventError, Err: ctx.Err()}
		case agentErr != nil:
			o.logger.Error("stream failed", "agent_id", agent.ID(), "error", agentErr)
			o.persistPartial(ctx, agent, req, text, streamErrorMarker)
			out <- StreamEvent{Type: EventError, Err: agentErr}
		default:
			if final.Empty() && text != "" {
				final = NewAssistantMessage(text)
			}
			o.callbacks.OnAgentEnd(ctx, AgentEndInfo{
				AgentName:    agent.Name(),
				Response:     final,
				Messages:     req.History,
				TrackingInfo: tracking,
			})
			o.persistExchange(ctx, agent, req.UserID, req.SessionID, req.Input, final)
			out <- StreamEvent{Type: EventEnd, Final: final}
		}
	}()

	return AgentResponse{Metadata: meta, Stream: out, Streaming: true}
}

// persistExchange writes the user turn then the assistant turn under the
// agent's key. An empty assistant turn suppresses both writes so the log's
// alternation is preserved for the next turn. Write failures are logged and
// swallowed; the reply has already been produced.
func (o *Orchestrator) persistExchange(ctx context.Context, agent Agent, userID, sessionID, input string, reply ConversationMessage) {
	if !agent.SaveChat() || reply.Empty() {
		return
	}
	bound := o.pairBound()
	if _, err := o.storage.SaveMessage(ctx, userID, sessionID, agent.ID(), NewUserMessage(input), bound); err != nil {
		o.logger.Warn("persist user turn failed", "agent_id", agent.ID(), "error", err)
	}
	if _, err := o.storage.SaveMessage(ctx, userID, sessionID, agent.ID(), reply, bound); err != nil {
		o.logger.Warn("persist assistant turn failed", "agent_id", agent.ID(), "error", err)
	}
}

// persistPartial persists an interrupted streamed reply: the text received
// so far plus a marker block.
func (o *Orchestrator) persistPartial(ctx context.Context, agent Agent, req AgentRequest, text, marker string) {
	if !agent.SaveChat() || text == "" {
		return
	}
	reply := ConversationMessage{
		Role:    RoleAssistant,
		Content: []ContentBlock{TextBlock(text), TextBlock(marker)},
	}
	o.persistExchange(ctx, agent, req.UserID, req.SessionID, req.Input, reply)
}

// terminalResponse fabricates the assistant message returned for
// classification and selection failures. Nothing is persisted.
func (o *Orchestrator) terminalResponse(input, userID, sessionID string, params map[string]string, text string) AgentResponse {
	return AgentResponse{
		Metadata: ResponseMetadata{
			UserInput:        input,
			UserID:           userID,
			SessionID:        sessionID,
			AdditionalParams: params,
		},
		Output:    NewAssistantMessage(text),
		Streaming: false,
	}
}

func (o *Orchestrator) pairBound() int {
	if o.cfg.MaxMessagePairsPerAgent > 0 {
		return 2 * o.cfg.MaxMessagePairsPerAgent
	}
	return 0
}

func (o *Orchestrator) classificationErrorText() string {
	if o.cfg.ClassificationErrorMessage != "" {
		return o.cfg.ClassificationErrorMessage
	}
	if o.cfg.GeneralRoutingErrorMessage != "" {
		return o.cfg.GeneralRoutingErrorMessage
	}
	return defaultRoutingErrorMessage
}

func (o *Orchestrator) noSelectionText() string {
	if o.cfg.NoSelectedAgentMessage != "" {
		return o.cfg.NoSelectedAgentMessage
	}
	if o.cfg.GeneralRoutingErrorMessage != "" {
		return o.cfg.GeneralRoutingErrorMessage
	}
	return defaultNoSelectedAgentMessage
}

// startSpan opens a span when a tracer is configured; otherwise it returns
// a no-op span.
func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if o.tracer == nil {
		return ctx, nopSpan{}
	}
	return o.tracer.Start(ctx, name, attrs...)
}

func agentID(a Agent) string {
	if a == nil {
		return ""
	}
	return a.ID()
}

// chatTexts renders a history for operational logs.
func chatTexts(msgs []ConversationMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ": " + m.Text()
	}
	return out
}
