package switchboard

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// recordingProvider captures the last request alongside canned results.
type recordingProvider struct {
	stubProvider
	lastReq ChatRequest
}

func (r *recordingProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	r.lastReq = req
	return r.stubProvider.Chat(ctx, req)
}

func (r *recordingProvider) ChatStream(ctx context.Context, req ChatRequest, ch chan<- string) (ChatResponse, error) {
	r.lastReq = req
	return r.stubProvider.ChatStream(ctx, req, ch)
}

// fixedRetriever returns the same results for every query.
type fixedRetriever struct {
	results []RetrievalResult
	err     error
}

func (r *fixedRetriever) Retrieve(_ context.Context, _ string) ([]RetrievalResult, error) {
	return r.results, r.err
}

func TestNewLLMAgentDerivesID(t *testing.T) {
	a := NewLLMAgent("Tech Support", "handles bugs", &stubProvider{})
	if a.ID() != "tech-support" {
		t.Errorf("ID = %q", a.ID())
	}
	if a.Name() != "Tech Support" || a.Description() != "handles bugs" {
		t.Errorf("name/description = %q/%q", a.Name(), a.Description())
	}
	if !a.SaveChat() {
		t.Error("SaveChat should default to true")
	}
	if a.Streaming() {
		t.Error("Streaming should default to false")
	}
}

func TestLLMAgentProcessRequest(t *testing.T) {
	provider := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "rebooted"}},
	}}}
	a := NewLLMAgent("Tech Support", "handles bugs", provider,
		WithSystemPrompt("You are {{role}}.", map[string]string{"role": "tech support"}))

	reply, err := a.ProcessRequest(context.Background(), AgentRequest{
		Input: "my router is down",
		History: []ConversationMessage{
			NewUserMessage("hi"),
			NewAssistantMessage("hello"),
			NewSystemMessage("ignored"),
		},
	})
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if reply.Role != RoleAssistant || reply.Text() != "rebooted" {
		t.Errorf("reply = %v %q", reply.Role, reply.Text())
	}

	msgs := provider.lastReq.Messages
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want 4 (system, 2 history, input)", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "You are tech support." {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[2].Role != "assistant" {
		t.Errorf("history roles = %q, %q", msgs[1].Role, msgs[2].Role)
	}
	if last := msgs[3]; last.Role != "user" || last.Content != "my router is down" {
		t.Errorf("final message = %+v", last)
	}
}

func TestLLMAgentNoSystemPrompt(t *testing.T) {
	provider := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "ok"}},
	}}}
	a := NewLLMAgent("Tech Support", "handles bugs", provider)

	if _, err := a.ProcessRequest(context.Background(), AgentRequest{Input: "hi"}); err != nil {
		t.Fatal(err)
	}
	if len(provider.lastReq.Messages) != 1 || provider.lastReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want just the input", provider.lastReq.Messages)
	}
}

func TestLLMAgentRetrievedContextInPrompt(t *testing.T) {
	provider := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "ok"}},
	}}}
	a := NewLLMAgent("Billing", "handles invoices", provider,
		WithSystemPrompt("You handle billing.", nil),
		WithRetriever(&fixedRetriever{results: []RetrievalResult{
			{Text: "Invoices go out on the 1st.", Score: 0.9},
			{Text: "Refunds take 5 days.", Score: 0.7},
		}}))

	if _, err := a.ProcessRequest(context.Background(), AgentRequest{Input: "when is my invoice?"}); err != nil {
		t.Fatal(err)
	}
	sys := provider.lastReq.Messages[0].Content
	if !strings.Contains(sys, "You handle billing.") {
		t.Errorf("system prompt lost: %q", sys)
	}
	if !strings.Contains(sys, "Relevant context:") ||
		!strings.Contains(sys, "Invoices go out on the 1st.\nRefunds take 5 days.") {
		t.Errorf("retrieved context missing: %q", sys)
	}
}

func TestLLMAgentRetrievalFailureBestEffort(t *testing.T) {
	provider := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "ok"}},
	}}}
	a := NewLLMAgent("Billing", "handles invoices", provider,
		WithRetriever(&fixedRetriever{err: fmt.Errorf("index offline")}))

	reply, err := a.ProcessRequest(context.Background(), AgentRequest{Input: "hi"})
	if err != nil {
		t.Fatalf("retrieval failure must not fail the request, got %v", err)
	}
	if reply.Text() != "ok" {
		t.Errorf("reply = %q", reply.Text())
	}
}

func TestLLMAgentProviderErrorPropagates(t *testing.T) {
	provider := &stubProvider{results: []stubResult{
		{err: fmt.Errorf("boom")},
	}}
	a := NewLLMAgent("Tech Support", "handles bugs", provider)

	if _, err := a.ProcessRequest(context.Background(), AgentRequest{Input: "hi"}); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestLLMAgentProcessRequestStream(t *testing.T) {
	provider := &stubProvider{results: []stubResult{
		{tokens: []string{"re", "booted"}, resp: ChatResponse{Content: "rebooted"}},
	}}
	a := NewLLMAgent("Tech Support", "handles bugs", provider, WithStreaming())
	if !a.Streaming() {
		t.Error("WithStreaming not applied")
	}

	ch := make(chan StreamEvent, 8)
	var reply ConversationMessage
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		reply, err = a.ProcessRequestStream(context.Background(), AgentRequest{Input: "fix it"}, ch)
	}()

	var streamed strings.Builder
	for ev := range ch {
		if ev.Type == EventToken {
			streamed.WriteString(ev.Token)
		}
	}
	<-done

	if err != nil {
		t.Fatalf("ProcessRequestStream: %v", err)
	}
	if streamed.String() != "rebooted" {
		t.Errorf("streamed %q", streamed.String())
	}
	if reply.Text() != "rebooted" {
		t.Errorf("final reply = %q", reply.Text())
	}
}

func TestLLMAgentStreamAssemblesWhenContentEmpty(t *testing.T) {
	// Provider streams tokens but returns no final content; the agent
	// assembles the reply from the chunks.
	provider := &stubProvider{results: []stubResult{
		{tokens: []string{"hel", "lo"}},
	}}
	a := NewLLMAgent("Tech Support", "handles bugs", provider, WithStreaming())

	ch := make(chan StreamEvent, 8)
	go func() {
		for range ch {
		}
	}()
	reply, err := a.ProcessRequestStream(context.Background(), AgentRequest{Input: "hi"}, ch)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text() != "hello" {
		t.Errorf("reply = %q, want assembled from chunks", reply.Text())
	}
}

func TestLLMAgentStreamTokenCallback(t *testing.T) {
	provider := &stubProvider{results: []stubResult{
		{tokens: []string{"a", "b"}, resp: ChatResponse{Content: "ab"}},
	}}
	cb := &recordingCallbacks{}
	a := NewLLMAgent("Tech Support", "handles bugs", provider, WithStreaming(), WithCallbacks(cb))

	ch := make(chan StreamEvent, 8)
	go func() {
		for range ch {
		}
	}()
	if _, err := a.ProcessRequestStream(context.Background(), AgentRequest{Input: "hi"}, ch); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cb.tokens, ""); got != "ab" {
		t.Errorf("callback saw %q, want %q", got, "ab")
	}
}

// recordingCallbacks records streamed tokens.
type recordingCallbacks struct {
	NopCallbacks
	tokens []string
}

func (c *recordingCallbacks) OnLLMNewToken(token string) {
	c.tokens = append(c.tokens, token)
}
