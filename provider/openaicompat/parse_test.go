package openaicompat

import (
	"testing"
)

func TestParseResponseContent(t *testing.T) {
	resp := ChatResponse{
		Choices: []Choice{{
			Message: &ChoiceMessage{Role: "assistant", Content: "hello"},
		}},
		Usage: &Usage{PromptTokens: 12, CompletionTokens: 4},
	}
	out, err := ParseResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != "hello" {
		t.Errorf("content = %q", out.Content)
	}
	if out.Usage.InputTokens != 12 || out.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestParseResponseEmptyChoices(t *testing.T) {
	out, err := ParseResponse(ChatResponse{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != "" || out.ToolCalls != nil {
		t.Errorf("out = %+v, want zero value", out)
	}
}

func TestParseToolCalls(t *testing.T) {
	calls := ParseToolCalls([]ToolCallRequest{
		{ID: "call_1", Function: FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`}},
	})
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "lookup" || string(calls[0].Args) != `{"q":"x"}` {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestParseToolCallsInvalidArgs(t *testing.T) {
	calls := ParseToolCalls([]ToolCallRequest{
		{ID: "call_1", Function: FunctionCall{Name: "lookup", Arguments: `{"q":`}},
	})
	if string(calls[0].Args) != `{}` {
		t.Errorf("invalid args = %q, want {}", calls[0].Args)
	}
}

func TestParseToolCallsEmpty(t *testing.T) {
	if calls := ParseToolCalls(nil); calls != nil {
		t.Errorf("got %v, want nil", calls)
	}
}
