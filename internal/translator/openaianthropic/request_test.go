package openaianthropic

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToAnthropicMapsSystemAndMessages(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"max_tokens": 512,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hi"}
		]
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)

	if r.Get("model").String() != "claude-opus-4-6" {
		t.Fatalf("model = %q", r.Get("model").String())
	}
	if r.Get("system").String() != "be terse" {
		t.Fatalf("system = %q", r.Get("system").String())
	}
	if r.Get("max_tokens").Int() != 512 {
		t.Fatalf("max_tokens = %d", r.Get("max_tokens").Int())
	}
	msgs := r.Get("messages")
	if !msgs.IsArray() || len(msgs.Array()) != 1 {
		t.Fatalf("expected 1 non-system message, got %s", msgs.Raw)
	}
	first := msgs.Array()[0]
	if first.Get("role").String() != "user" {
		t.Fatalf("role = %q", first.Get("role").String())
	}
}

func TestRequestToAnthropicTranslatesToolCalls(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"messages": [
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}}
			]}
		]
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)
	parts := r.Get("messages.0.content")
	if !parts.IsArray() || len(parts.Array()) != 1 {
		t.Fatalf("expected 1 content part, got %s", parts.Raw)
	}
	part := parts.Array()[0]
	if part.Get("type").String() != "tool_use" || part.Get("name").String() != "lookup" {
		t.Fatalf("unexpected tool_use part: %s", part.Raw)
	}
	if part.Get("input.q").String() != "go" {
		t.Fatalf("input.q = %q", part.Get("input.q").String())
	}
}

func TestRequestToAnthropicMapsToolChoice(t *testing.T) {
	in := `{"model":"gpt-4o","messages":[],"tool_choice":"required"}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)
	if r.Get("tool_choice.type").String() != "any" {
		t.Fatalf("tool_choice.type = %q", r.Get("tool_choice.type").String())
	}
}
