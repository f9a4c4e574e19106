package geminiopenai

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToOpenAIMapsSystemAndUser(t *testing.T) {
	in := `{
		"systemInstruction": {"parts": [{"text": "be terse"}]},
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"generationConfig": {"temperature": 0.5, "maxOutputTokens": 256}
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)

	if r.Get("model").String() != "gpt-4o" {
		t.Fatalf("model = %q", r.Get("model").String())
	}
	msgs := r.Get("messages").Array()
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d: %s", len(msgs), r.Get("messages").Raw)
	}
	if msgs[0].Get("role").String() != "system" || msgs[0].Get("content").String() != "be terse" {
		t.Fatalf("unexpected system message: %s", msgs[0].Raw)
	}
	if msgs[1].Get("role").String() != "user" || msgs[1].Get("content").String() != "hi" {
		t.Fatalf("unexpected user message: %s", msgs[1].Raw)
	}
	if r.Get("temperature").Float() != 0.5 {
		t.Fatalf("temperature = %v", r.Get("temperature").Float())
	}
	if r.Get("max_tokens").Int() != 256 {
		t.Fatalf("max_tokens = %d", r.Get("max_tokens").Int())
	}
}

func TestRequestToOpenAITranslatesFunctionCall(t *testing.T) {
	in := `{
		"contents": [{"role": "model", "parts": [{"functionCall": {"name": "lookup", "args": {"q": "go"}}}]}]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)
	msg := r.Get("messages.0")
	if msg.Get("role").String() != "assistant" {
		t.Fatalf("role = %q", msg.Get("role").String())
	}
	calls := msg.Get("tool_calls").Array()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %s", msg.Get("tool_calls").Raw)
	}
	if calls[0].Get("function.name").String() != "lookup" {
		t.Fatalf("function.name = %q", calls[0].Get("function.name").String())
	}
	if calls[0].Get("function.arguments").String() != `{"q":"go"}` {
		t.Fatalf("function.arguments = %q", calls[0].Get("function.arguments").String())
	}
}

func TestRequestToOpenAITranslatesFunctionResponse(t *testing.T) {
	in := `{
		"contents": [{"role": "user", "parts": [{"functionResponse": {"name": "lookup", "response": {"content": "42"}}}]}]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)
	msg := r.Get("messages.0")
	if msg.Get("role").String() != "tool" {
		t.Fatalf("role = %q", msg.Get("role").String())
	}
	if msg.Get("tool_call_id").String() != "call_lookup" {
		t.Fatalf("tool_call_id = %q", msg.Get("tool_call_id").String())
	}
	if msg.Get("content").String() != "42" {
		t.Fatalf("content = %q", msg.Get("content").String())
	}
}

func TestRequestToOpenAITranslatesTools(t *testing.T) {
	in := `{
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"tools": [{"functionDeclarations": [{"name": "lookup", "description": "look things up", "parameters": {"type": "object"}}]}]
	}`
	out := RequestToOpenAI("gpt-4o", []byte(in), false)
	r := gjson.ParseBytes(out)
	tool := r.Get("tools.0")
	if tool.Get("type").String() != "function" {
		t.Fatalf("type = %q", tool.Get("type").String())
	}
	if tool.Get("function.name").String() != "lookup" {
		t.Fatalf("function.name = %q", tool.Get("function.name").String())
	}
}
