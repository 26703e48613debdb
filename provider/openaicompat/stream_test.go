package openaicompat

import (
	"context"
	"strings"
	"testing"
)

func drain(ch <-chan string) <-chan string {
	out := make(chan string, 1)
	go func() {
		var b strings.Builder
		for tok := range ch {
			b.WriteString(tok)
		}
		out <- b.String()
	}()
	return out
}

func TestStreamSSEContent(t *testing.T) {
	body := strings.NewReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n" +
			"\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
			"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":2}}\n" +
			"data: [DONE]\n")

	ch := make(chan string, 8)
	got := drain(ch)
	resp, err := StreamSSE(context.Background(), body, ch)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if streamed := <-got; streamed != "hello" {
		t.Errorf("streamed = %q", streamed)
	}
}

func TestStreamSSEToolCallAccumulation(t *testing.T) {
	body := strings.NewReader(
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"select_agent\",\"arguments\":\"{\\\"sel\"}}]}}]}\n" +
			"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"ected\\\":1}\"}}]}}]}\n" +
			"data: [DONE]\n")

	ch := make(chan string, 8)
	got := drain(ch)
	resp, err := StreamSSE(context.Background(), body, ch)
	if err != nil {
		t.Fatal(err)
	}
	<-got
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "select_agent" {
		t.Errorf("tool call = %+v", tc)
	}
	if string(tc.Args) != `{"selected":1}` {
		t.Errorf("args = %q", tc.Args)
	}
}

func TestStreamSSESecondToolCallAfterArguments(t *testing.T) {
	// A second indexed tool call arrives after arguments were already
	// written for the first, then the first receives more fragments.
	body := strings.NewReader(
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_a\",\"function\":{\"name\":\"first\",\"arguments\":\"{\\\"a\\\":\"}}]}}]}\n" +
			"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"id\":\"call_b\",\"function\":{\"name\":\"second\",\"arguments\":\"{\\\"b\\\":2}\"}}]}}]}\n" +
			"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"1}\"}}]}}]}\n" +
			"data: [DONE]\n")

	ch := make(chan string, 8)
	got := drain(ch)
	resp, err := StreamSSE(context.Background(), body, ch)
	if err != nil {
		t.Fatal(err)
	}
	<-got
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "first" || string(resp.ToolCalls[0].Args) != `{"a":1}` {
		t.Errorf("first call = %+v", resp.ToolCalls[0])
	}
	if resp.ToolCalls[1].Name != "second" || string(resp.ToolCalls[1].Args) != `{"b":2}` {
		t.Errorf("second call = %+v", resp.ToolCalls[1])
	}
}

func TestStreamSSEMalformedChunksSkipped(t *testing.T) {
	body := strings.NewReader(
		"data: {not json\n" +
			": comment line\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
			"data: [DONE]\n")

	ch := make(chan string, 8)
	got := drain(ch)
	resp, err := StreamSSE(context.Background(), body, ch)
	if err != nil {
		t.Fatal(err)
	}
	<-got
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestStreamSSEEmptyBody(t *testing.T) {
	ch := make(chan string, 1)
	got := drain(ch)
	resp, err := StreamSSE(context.Background(), strings.NewReader(""), ch)
	if err != nil {
		t.Fatal(err)
	}
	if streamed := <-got; streamed != "" {
		t.Errorf("streamed = %q", streamed)
	}
	if resp.Content != "" {
		t.Errorf("content = %q", resp.Content)
	}
}
