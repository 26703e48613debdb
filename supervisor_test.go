package switchboard

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestSupervisorFansOutAndSynthesizes(t *testing.T) {
	alpha := newFakeAgent("alpha", "answer from alpha")
	beta := newFakeAgent("beta", "answer from beta")
	lead := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "combined answer"}},
	}}}
	s := NewSupervisorAgent("Research Team", "answers hard questions", lead, []Agent{alpha, beta})

	reply, err := s.ProcessRequest(context.Background(), AgentRequest{Input: "what is going on?"})
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if reply.Text() != "combined answer" {
		t.Errorf("reply = %q", reply.Text())
	}
	if alpha.calls != 1 || beta.calls != 1 {
		t.Errorf("member calls = %d, %d; want 1 each", alpha.calls, beta.calls)
	}

	sys := lead.lastReq.Messages[0].Content
	if !strings.Contains(sys, "alpha: answer from alpha") || !strings.Contains(sys, "beta: answer from beta") {
		t.Errorf("lead prompt missing member replies:\n%s", sys)
	}
	if last := lead.lastReq.Messages[1]; last.Role != "user" || last.Content != "what is going on?" {
		t.Errorf("lead input = %+v", last)
	}
}

func TestSupervisorMemberFailureIsReported(t *testing.T) {
	good := newFakeAgent("good", "fine")
	bad := newFakeAgent("bad", "")
	bad.err = fmt.Errorf("member down")
	lead := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "partial answer"}},
	}}}
	s := NewSupervisorAgent("Team", "ensemble", lead, []Agent{good, bad})

	reply, err := s.ProcessRequest(context.Background(), AgentRequest{Input: "hi"})
	if err != nil {
		t.Fatalf("one failing member must not fail the ensemble, got %v", err)
	}
	if reply.Text() != "partial answer" {
		t.Errorf("reply = %q", reply.Text())
	}
	sys := lead.lastReq.Messages[0].Content
	if !strings.Contains(sys, "bad: error: member down") {
		t.Errorf("lead prompt missing member error:\n%s", sys)
	}
}

func TestSupervisorLeadFailurePropagates(t *testing.T) {
	member := newFakeAgent("alpha", "fine")
	lead := &stubProvider{results: []stubResult{
		{err: fmt.Errorf("lead down")},
	}}
	s := NewSupervisorAgent("Team", "ensemble", lead, []Agent{member})

	if _, err := s.ProcessRequest(context.Background(), AgentRequest{Input: "hi"}); err == nil {
		t.Fatal("expected lead provider error")
	}
}

func TestSupervisorIdentity(t *testing.T) {
	s := NewSupervisorAgent("Research Team", "answers hard questions", &stubProvider{}, nil)
	if s.ID() != "research-team" {
		t.Errorf("ID = %q", s.ID())
	}
	if s.Streaming() {
		t.Error("supervisor never streams")
	}
}

func TestSupervisorCustomPrompt(t *testing.T) {
	member := newFakeAgent("alpha", "fine")
	lead := &recordingProvider{stubProvider: stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "ok"}},
	}}}
	s := NewSupervisorAgent("Team", "ensemble", lead, []Agent{member},
		WithSystemPrompt("Summarize for {{audience}}.", map[string]string{"audience": "executives"}))

	if _, err := s.ProcessRequest(context.Background(), AgentRequest{Input: "hi"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(lead.lastReq.Messages[0].Content, "Summarize for executives.") {
		t.Errorf("custom prompt not used:\n%s", lead.lastReq.Messages[0].Content)
	}
}
