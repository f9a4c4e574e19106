package anthropicopenai

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToOpenAIMapsSystemAndMessages(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"max_tokens": 512,
		"system": "be terse",
		"messages": [{"role": "user", "content": "hi"}]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)

	if r.Get("model").String() != "claude-opus-4-6" {
		t.Fatalf("model = %q", r.Get("model").String())
	}
	if r.Get("max_tokens").Int() != 512 {
		t.Fatalf("max_tokens = %d", r.Get("max_tokens").Int())
	}
	msgs := r.Get("messages").Array()
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d: %s", len(msgs), r.Get("messages").Raw)
	}
	if msgs[0].Get("role").String() != "system" || msgs[0].Get("content").String() != "be terse" {
		t.Fatalf("unexpected system message: %s", msgs[0].Raw)
	}
	if msgs[1].Get("role").String() != "user" {
		t.Fatalf("unexpected second message: %s", msgs[1].Raw)
	}
}

func TestRequestToOpenAITranslatesToolUse(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"messages": [
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {"q": "go"}}
			]}
		]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)
	calls := r.Get("messages.0.tool_calls")
	if !calls.IsArray() || len(calls.Array()) != 1 {
		t.Fatalf("expected 1 tool call, got %s", calls.Raw)
	}
	call := calls.Array()[0]
	if call.Get("function.name").String() != "lookup" {
		t.Fatalf("function.name = %q", call.Get("function.name").String())
	}
	args := call.Get("function.arguments").String()
	if gjson.Get(args, "q").String() != "go" {
		t.Fatalf("function.arguments = %q", args)
	}
}

func TestRequestToOpenAITranslatesToolResult(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"messages": [
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "42"}
			]}
		]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)
	msg := r.Get("messages.0")
	if msg.Get("role").String() != "tool" {
		t.Fatalf("role = %q", msg.Get("role").String())
	}
	if msg.Get("tool_call_id").String() != "toolu_1" {
		t.Fatalf("tool_call_id = %q", msg.Get("tool_call_id").String())
	}
}
