package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/switchboardhq/switchboard"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	var tick int64
	s := New(filepath.Join(t.TempDir(), "chat.db"), WithClock(func() int64 {
		tick++
		return tick
	}))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestInitIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestSaveAndFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	log, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("invoice?"), 0)
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("log = %v", log)
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewAssistantMessage("sent"), 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchChat(ctx, "u1", "s1", "billing", 0)
	if err != nil {
		t.Fatalf("FetchChat: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Role != switchboard.RoleUser || got[0].Text() != "invoice?" {
		t.Errorf("got[0] = %v %q", got[0].Role, got[0].Text())
	}
	if got[1].Role != switchboard.RoleAssistant || got[1].Text() != "sent" {
		t.Errorf("got[1] = %v %q", got[1].Role, got[1].Text())
	}
}

func TestSaveSuppressesSameRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("first"), 0); err != nil {
		t.Fatal(err)
	}
	log, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("second"), 0)
	if err != nil {
		t.Fatalf("suppressed write must not error: %v", err)
	}
	if len(log) != 1 || log[0].Text() != "first" {
		t.Fatalf("log = %v, want only the first user turn", log)
	}
}

func TestSaveTrims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("u"), 4); err != nil {
			t.Fatal(err)
		}
		if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewAssistantMessage("a"), 4); err != nil {
			t.Fatal(err)
		}
	}
	log, err := s.FetchChat(ctx, "u1", "s1", "billing", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 4 {
		t.Fatalf("log length = %d, want 4 after trim", len(log))
	}
	// Alternation survives trimming.
	if log[0].Role != switchboard.RoleUser || log[len(log)-1].Role != switchboard.RoleAssistant {
		t.Errorf("trimmed log roles = %v ... %v", log[0].Role, log[len(log)-1].Role)
	}
}

func TestSaveMessagesBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	log, err := s.SaveMessages(ctx, "u1", "s1", "billing", []switchboard.ConversationMessage{
		switchboard.NewUserMessage("q"),
		switchboard.NewUserMessage("q again"), // suppressed
		switchboard.NewAssistantMessage("a"),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("log = %v, want 2 after suppression", log)
	}
}

func TestFetchChatBoundKeepsMostRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pairs := []string{"one", "two", "three"}
	for _, p := range pairs {
		if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage(p), 0); err != nil {
			t.Fatal(err)
		}
		if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewAssistantMessage("re "+p), 0); err != nil {
			t.Fatal(err)
		}
	}
	log, err := s.FetchChat(ctx, "u1", "s1", "billing", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("got %d messages, want 2", len(log))
	}
	if log[0].Text() != "three" || log[1].Text() != "re three" {
		t.Errorf("bounded fetch = %q, %q; want the latest pair", log[0].Text(), log[1].Text())
	}
}

func TestKeyIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("a"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u2", "s1", "billing", switchboard.NewUserMessage("b"), 0); err != nil {
		t.Fatal(err)
	}

	log, err := s.FetchChat(ctx, "u1", "s1", "billing", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Text() != "a" {
		t.Errorf("u1 log = %v", log)
	}
}

func TestFetchAllChatsMergesAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewUserMessage("invoice?"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", switchboard.NewAssistantMessage("sent"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", "tech", switchboard.NewUserMessage("bug!"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", "tech", switchboard.NewAssistantMessage("fixed"), 0); err != nil {
		t.Fatal(err)
	}

	merged, err := s.FetchAllChats(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"invoice?", "[billing] sent", "bug!", "[tech] fixed"}
	if len(merged) != len(want) {
		t.Fatalf("merged = %d messages, want %d", len(merged), len(want))
	}
	for i, w := range want {
		if merged[i].Text() != w {
			t.Errorf("merged[%d] = %q, want %q", i, merged[i].Text(), w)
		}
	}
}

func TestContentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := switchboard.ConversationMessage{
		Role: switchboard.RoleAssistant,
		Content: []switchboard.ContentBlock{
			switchboard.TextBlock("here you go"),
			{Kind: switchboard.BlockToolUse, Raw: []byte(`{"name":"lookup"}`)},
		},
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", "billing", msg, 0); err != nil {
		t.Fatal(err)
	}
	log, err := s.FetchChat(ctx, "u1", "s1", "billing", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || len(log[0].Content) != 2 {
		t.Fatalf("log = %v", log)
	}
	if log[0].Content[1].Kind != switchboard.BlockToolUse || string(log[0].Content[1].Raw) != `{"name":"lookup"}` {
		t.Errorf("opaque block lost: %+v", log[0].Content[1])
	}
}
