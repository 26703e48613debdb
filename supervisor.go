package switchboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// SupervisorAgent is an ensemble agent: it fans the utterance out to its
// member agents concurrently and synthesizes their replies through a lead
// provider. It composes via the same Agent capability as every other agent,
// so the orchestrator needs no special handling for it.
type SupervisorAgent struct {
	id           string
	name         string
	description  string
	lead         Provider
	members      []Agent
	systemPrompt string
	saveChat     bool
	logger       *slog.Logger
}

var _ Agent = (*SupervisorAgent)(nil)

// NewSupervisorAgent creates an ensemble over members, with lead used to
// synthesize the final reply.
func NewSupervisorAgent(name, description string, lead Provider, members []Agent, opts ...AgentOption) *SupervisorAgent {
	cfg := buildAgentConfig(opts)
	return &SupervisorAgent{
		id:           DeriveAgentID(name),
		name:         name,
		description:  description,
		lead:         lead,
		members:      members,
		systemPrompt: RenderTemplate(cfg.promptTmpl, cfg.promptVars),
		saveChat:     cfg.saveChat,
		logger:       cfg.logger,
	}
}

func (s *SupervisorAgent) ID() string          { return s.id }
func (s *SupervisorAgent) Name() string        { return s.name }
func (s *SupervisorAgent) Description() string { return s.description }
func (s *SupervisorAgent) SaveChat() bool      { return s.saveChat }
func (s *SupervisorAgent) Streaming() bool     { return false }

// ProcessRequest fans the request out to every member, then asks the lead
// provider to synthesize one reply from the member responses. A failing
// member contributes its error text instead of blocking the ensemble.
func (s *SupervisorAgent) ProcessRequest(ctx context.Context, req AgentRequest) (ConversationMessage, error) {
	replies := make([]string, len(s.members))
	var wg sync.WaitGroup
	for i, member := range s.members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := member.ProcessRequest(ctx, req)
			if err != nil {
				s.logger.Warn("supervisor member failed", "member", member.ID(), "error", err)
				replies[i] = fmt.Sprintf("%s: error: %v", member.Name(), err)
				return
			}
			replies[i] = fmt.Sprintf("%s: %s", member.Name(), reply.Text())
		}()
	}
	wg.Wait()

	prompt := s.systemPrompt
	if prompt == "" {
		prompt = "You lead a team of assistants. Combine the team responses below into a single, coherent answer to the user's request. Resolve disagreements, drop errors, and do not mention the team."
	}
	prompt += "\n\nTeam responses:\n" + strings.Join(replies, "\n")

	resp, err := s.lead.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{SystemMessage(prompt), UserMessage(req.Input)},
	})
	if err != nil {
		return ConversationMessage{}, err
	}
	return NewAssistantMessage(resp.Content), nil
}
