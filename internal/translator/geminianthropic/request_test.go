package geminianthropic

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToAnthropicMapsSystemAndUser(t *testing.T) {
	in := `{
		"systemInstruction": {"parts": [{"text": "be terse"}]},
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"generationConfig": {"maxOutputTokens": 512}
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)

	if r.Get("model").String() != "claude-opus-4-6" {
		t.Fatalf("model = %q", r.Get("model").String())
	}
	if r.Get("system").String() != "be terse" {
		t.Fatalf("system = %q", r.Get("system").String())
	}
	msgs := r.Get("messages").Array()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d: %s", len(msgs), r.Get("messages").Raw)
	}
	if msgs[0].Get("role").String() != "user" {
		t.Fatalf("role = %q", msgs[0].Get("role").String())
	}
	if msgs[0].Get("content.0.type").String() != "text" || msgs[0].Get("content.0.text").String() != "hi" {
		t.Fatalf("content = %s", msgs[0].Get("content").Raw)
	}
	if r.Get("max_tokens").Int() != 512 {
		t.Fatalf("max_tokens = %d", r.Get("max_tokens").Int())
	}
}

func TestRequestToAnthropicTranslatesFunctionCallAndResponse(t *testing.T) {
	in := `{
		"contents": [
			{"role": "model", "parts": [{"functionCall": {"name": "lookup", "args": {"q": "go"}}}]},
			{"role": "user", "parts": [{"functionResponse": {"name": "lookup", "response": {"content": "42"}}}]}
		]
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)
	msgs := r.Get("messages").Array()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %s", len(msgs), r.Get("messages").Raw)
	}
	if msgs[0].Get("role").String() != "assistant" {
		t.Fatalf("role = %q", msgs[0].Get("role").String())
	}
	use := msgs[0].Get("content.0")
	if use.Get("type").String() != "tool_use" || use.Get("name").String() != "lookup" {
		t.Fatalf("tool_use = %s", use.Raw)
	}
	if use.Get("input.q").String() != "go" {
		t.Fatalf("input = %s", use.Get("input").Raw)
	}
	result := msgs[1].Get("content.0")
	if result.Get("type").String() != "tool_result" {
		t.Fatalf("result type = %q", result.Get("type").String())
	}
	if result.Get("content").String() != "42" {
		t.Fatalf("result content = %q", result.Get("content").String())
	}
}

func TestRequestToAnthropicTranslatesInlineData(t *testing.T) {
	in := `{
		"contents": [{"role": "user", "parts": [{"inlineData": {"mimeType": "image/png", "data": "Zm9v"}}]}]
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)
	img := r.Get("messages.0.content.0")
	if img.Get("type").String() != "image" {
		t.Fatalf("type = %q", img.Get("type").String())
	}
	if img.Get("source.media_type").String() != "image/png" {
		t.Fatalf("media_type = %q", img.Get("source.media_type").String())
	}
	if img.Get("source.data").String() != "Zm9v" {
		t.Fatalf("data = %q", img.Get("source.data").String())
	}
}

func TestRequestToAnthropicTranslatesTools(t *testing.T) {
	in := `{
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"tools": [{"functionDeclarations": [{"name": "lookup", "description": "look things up", "parameters": {"type": "object"}}]}]
	}`
	out := RequestToAnthropic("claude-opus-4-6", []byte(in), false)
	r := gjson.ParseBytes(out)
	tool := r.Get("tools.0")
	if tool.Get("name").String() != "lookup" {
		t.Fatalf("name = %q", tool.Get("name").String())
	}
	if tool.Get("input_schema.type").String() != "object" {
		t.Fatalf("input_schema = %s", tool.Get("input_schema").Raw)
	}
}
