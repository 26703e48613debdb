package switchboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func selectionCall(agentID string, confidence float64) ToolCall {
	args, _ := json.Marshal(map[string]any{
		"userinput":      "whatever",
		"selected_agent": agentID,
		"confidence":     confidence,
	})
	return ToolCall{ID: "call_1", Name: "select_agent", Args: args}
}

func classifierFixture(t *testing.T, stub *stubProvider) (*LLMClassifier, *Registry) {
	t.Helper()
	r := NewRegistry()
	for _, id := range []string{"billing", "tech-support"} {
		if err := r.Add(newFakeAgent(id, "ok")); err != nil {
			t.Fatal(err)
		}
	}
	return NewLLMClassifier(stub, r), r
}

func TestClassifySelectsAgent(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{selectionCall("billing", 0.9)}}},
	}}
	c, _ := classifierFixture(t, stub)

	result, err := c.Classify(context.Background(), "refund my order", nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.SelectedAgent == nil || result.SelectedAgent.ID() != "billing" {
		t.Fatalf("selected %v, want billing", result.SelectedAgent)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}
}

func TestClassifyNormalizesAgentID(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{selectionCall("  Billing ", 0.7)}}},
	}}
	c, _ := classifierFixture(t, stub)

	result, err := c.Classify(context.Background(), "invoice", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.SelectedAgent == nil || result.SelectedAgent.ID() != "billing" {
		t.Errorf("selected %v, want billing after trim+lowercase", result.SelectedAgent)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{selectionCall("billing", 1.7)}}},
	}}
	c, _ := classifierFixture(t, stub)

	result, err := c.Classify(context.Background(), "invoice", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", result.Confidence)
	}
}

func TestClassifyNoneIsNoSelection(t *testing.T) {
	for _, id := range []string{"none", "unknown", ""} {
		stub := &stubProvider{results: []stubResult{
			{resp: ChatResponse{ToolCalls: []ToolCall{selectionCall(id, 0.3)}}},
		}}
		c, _ := classifierFixture(t, stub)

		result, err := c.Classify(context.Background(), "hi", nil)
		if err != nil {
			t.Fatalf("id %q: unexpected error %v", id, err)
		}
		if result.SelectedAgent != nil {
			t.Errorf("id %q: expected no selection, got %v", id, result.SelectedAgent.ID())
		}
	}
}

func TestClassifyInventedAgentIsNoSelection(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{selectionCall("shipping", 0.8)}}},
	}}
	c, _ := classifierFixture(t, stub)

	result, err := c.Classify(context.Background(), "where is my parcel", nil)
	if err != nil {
		t.Fatalf("invented id should not be an error, got %v", err)
	}
	if result.SelectedAgent != nil {
		t.Errorf("expected no selection for unregistered id, got %v", result.SelectedAgent.ID())
	}
}

func TestClassifyMissingToolCallIsError(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "billing sounds right"}},
	}}
	c, _ := classifierFixture(t, stub)

	if _, err := c.Classify(context.Background(), "invoice", nil); err == nil {
		t.Fatal("expected error when the model skips the tool call")
	}
}

func TestClassifyMalformedArgsIsError(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{
			{ID: "call_1", Name: "select_agent", Args: json.RawMessage(`{"selected_agent": 42`)},
		}}},
	}}
	c, _ := classifierFixture(t, stub)

	if _, err := c.Classify(context.Background(), "invoice", nil); err == nil {
		t.Fatal("expected error for malformed tool args")
	}
}

func TestClassifyBackendErrorWrapped(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{err: fmt.Errorf("boom")},
	}}
	c, _ := classifierFixture(t, stub)

	_, err := c.Classify(context.Background(), "invoice", nil)
	if err == nil || !strings.Contains(err.Error(), "classifier backend") {
		t.Fatalf("got %v, want wrapped backend error", err)
	}
}

func TestClassifierBuildMessages(t *testing.T) {
	stub := &stubProvider{}
	c, _ := classifierFixture(t, stub)

	history := []ConversationMessage{
		NewUserMessage("my invoice is wrong"),
		PrefixAgentID(NewAssistantMessage("let me check"), "billing"),
		{Role: RoleAssistant}, // empty turns are skipped
	}
	messages := c.buildMessages("still wrong", history)

	if messages[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", messages[0].Role)
	}
	sys := messages[0].Content
	if !strings.Contains(sys, "billing:billing:ok") || !strings.Contains(sys, "tech-support:tech-support:ok") {
		t.Errorf("system prompt missing agent listing:\n%s", sys)
	}
	// Listing is id-ordered.
	if strings.Index(sys, "billing:") > strings.Index(sys, "tech-support:") {
		t.Error("agent listing not sorted by id")
	}

	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4 (system, 2 history, input)", len(messages))
	}
	if messages[1].Role != "user" || messages[1].Content != "my invoice is wrong" {
		t.Errorf("history user turn = %+v", messages[1])
	}
	if messages[2].Role != "assistant" || !strings.HasPrefix(messages[2].Content, "[billing]") {
		t.Errorf("history assistant turn = %+v, want tagged", messages[2])
	}
	if last := messages[len(messages)-1]; last.Role != "user" || last.Content != "still wrong" {
		t.Errorf("final message = %+v, want the input", last)
	}
}

func TestClassifierHistoryBound(t *testing.T) {
	stub := &stubProvider{}
	r := NewRegistry()
	if err := r.Add(newFakeAgent("billing", "ok")); err != nil {
		t.Fatal(err)
	}
	c := NewLLMClassifier(stub, r, WithClassifierMaxHistory(2))

	var history []ConversationMessage
	for i := 0; i < 5; i++ {
		history = append(history, NewUserMessage(fmt.Sprintf("turn %d", i)))
	}
	messages := c.buildMessages("latest", history)
	// system + 2 bounded history + input.
	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(messages))
	}
	if messages[1].Content != "turn 3" {
		t.Errorf("bounded history starts at %q, want %q", messages[1].Content, "turn 3")
	}
}
