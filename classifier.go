package switchboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Classifier proposes an agent and a confidence for one utterance, given the
// merged cross-agent history. Structural failures (backend unavailable,
// malformed structured output) are returned as errors; the orchestrator
// applies its retry budget to them.
type Classifier interface {
	Classify(ctx context.Context, input string, history []ConversationMessage) (ClassifierResult, error)
}

// selectAgentTool is the structured-output schema the classifier asks the
// model to fill in.
var selectAgentTool = ToolDefinition{
	Name:        "select_agent",
	Description: "Select the most appropriate agent for the user's request.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"userinput": {"type": "string", "description": "The user's original input, verbatim."},
			"selected_agent": {"type": "string", "description": "The id of the selected agent, or \"none\" if no agent fits."},
			"confidence": {"type": "number", "description": "Selection confidence between 0 and 1."}
		},
		"required": ["userinput", "selected_agent", "confidence"]
	}`),
}

// defaultMaxClassifierHistory bounds how many merged-history messages are
// included in the classifier prompt.
const defaultMaxClassifierHistory = 20

// LLMClassifier selects an agent with a structured tool call against a
// Provider. The system prompt lists every registered agent as
// "<id>:<name>:<description>" and includes the recent merged history so the
// model can keep a conversation with its previous agent.
type LLMClassifier struct {
	provider   Provider
	registry   *Registry
	maxHistory int
	prompt     string
	logger     *slog.Logger
}

var _ Classifier = (*LLMClassifier)(nil)

// ClassifierOption configures an LLMClassifier.
type ClassifierOption func(*LLMClassifier)

// WithClassifierMaxHistory bounds the number of merged-history messages
// included in the prompt (default 20).
func WithClassifierMaxHistory(n int) ClassifierOption {
	return func(c *LLMClassifier) { c.maxHistory = n }
}

// WithClassifierPrompt replaces the built-in system prompt preamble. The
// agent listing and history are still appended.
func WithClassifierPrompt(prompt string) ClassifierOption {
	return func(c *LLMClassifier) { c.prompt = prompt }
}

// WithClassifierLogger sets the structured logger for the classifier.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *LLMClassifier) { c.logger = l }
}

const defaultClassifierPrompt = `You are a routing classifier for a multi-agent assistant. Given the user's latest input and the conversation so far, select the single agent best suited to handle the input.

Rules:
- Pick exactly one agent id from the list below, or "none" if no agent fits.
- Assistant turns in the history are tagged with the agent that produced them, like "[agent-id] ...". When the input continues an ongoing exchange, prefer the agent from that exchange.
- Report your confidence in the selection as a number between 0 and 1.
- Always respond by calling the select_agent tool.`

// NewLLMClassifier creates a classifier over the given provider and
// registry. The registry is consulted at classification time, so agents
// added later are picked up automatically.
func NewLLMClassifier(provider Provider, registry *Registry, opts ...ClassifierOption) *LLMClassifier {
	c := &LLMClassifier{
		provider:   provider,
		registry:   registry,
		maxHistory: defaultMaxClassifierHistory,
		prompt:     defaultClassifierPrompt,
		logger:     nopLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, input string, history []ConversationMessage) (ClassifierResult, error) {
	messages := c.buildMessages(input, history)

	resp, err := c.provider.ChatWithTools(ctx, ChatRequest{Messages: messages}, []ToolDefinition{selectAgentTool})
	if err != nil {
		return ClassifierResult{}, fmt.Errorf("classifier backend: %w", err)
	}

	call, ok := findToolCall(resp.ToolCalls, selectAgentTool.Name)
	if !ok {
		return ClassifierResult{}, fmt.Errorf("classifier: no %s tool call in response", selectAgentTool.Name)
	}

	var sel struct {
		UserInput     string  `json:"userinput"`
		SelectedAgent string  `json:"selected_agent"`
		Confidence    float64 `json:"confidence"`
	}
	if err := json.Unmarshal(call.Args, &sel); err != nil {
		return ClassifierResult{}, fmt.Errorf("classifier: malformed selection: %w", err)
	}

	confidence := min(max(sel.Confidence, 0), 1)

	id := strings.TrimSpace(strings.ToLower(sel.SelectedAgent))
	if id == "" || id == "none" || id == "unknown" {
		c.logger.Debug("classifier: no agent selected", "confidence", confidence)
		return ClassifierResult{}, nil
	}

	agent, ok := c.registry.Get(id)
	if !ok {
		// The model invented an id; treat as no selection.
		c.logger.Debug("classifier: selected agent not registered", "agent_id", id)
		return ClassifierResult{}, nil
	}

	c.logger.Debug("classifier: agent selected", "agent_id", id, "confidence", confidence)
	return ClassifierResult{SelectedAgent: agent, Confidence: confidence}, nil
}

// buildMessages assembles the classifier prompt: preamble + agent listing,
// the bounded recent merged history, and the user input.
func (c *LLMClassifier) buildMessages(input string, history []ConversationMessage) []ChatMessage {
	var listing strings.Builder
	for _, a := range c.registry.Ordered() {
		fmt.Fprintf(&listing, "%s:%s:%s\n", a.ID(), a.Name(), a.Description())
	}

	messages := []ChatMessage{
		SystemMessage(c.prompt + "\n\nAvailable agents (id:name:description):\n" + listing.String()),
	}

	recent := history
	if c.maxHistory > 0 && len(recent) > c.maxHistory {
		recent = recent[len(recent)-c.maxHistory:]
	}
	for _, m := range recent {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, AssistantMessage(text))
		default:
			messages = append(messages, UserMessage(text))
		}
	}

	return append(messages, UserMessage(input))
}

// findToolCall returns the first tool call with the given name.
func findToolCall(calls []ToolCall, name string) (ToolCall, bool) {
	for _, tc := range calls {
		if tc.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}
