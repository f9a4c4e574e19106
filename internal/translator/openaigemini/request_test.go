package openaigemini

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToGeminiMapsSystemAndUser(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"temperature": 0.5,
		"max_tokens": 256,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hi"}
		]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)

	if r.Get("systemInstruction.parts.0.text").String() != "be terse" {
		t.Fatalf("systemInstruction = %s", r.Get("systemInstruction").Raw)
	}
	contents := r.Get("contents").Array()
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry, got %d: %s", len(contents), r.Get("contents").Raw)
	}
	if contents[0].Get("role").String() != "user" {
		t.Fatalf("role = %q", contents[0].Get("role").String())
	}
	if contents[0].Get("parts.0.text").String() != "hi" {
		t.Fatalf("text = %q", contents[0].Get("parts.0.text").String())
	}
	if r.Get("generationConfig.temperature").Float() != 0.5 {
		t.Fatalf("temperature = %v", r.Get("generationConfig.temperature").Float())
	}
	if r.Get("generationConfig.maxOutputTokens").Int() != 256 {
		t.Fatalf("maxOutputTokens = %d", r.Get("generationConfig.maxOutputTokens").Int())
	}
}

func TestRequestToGeminiTranslatesAssistantToolCall(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"messages": [
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}}
			]}
		]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	c := r.Get("contents.0")
	if c.Get("role").String() != "model" {
		t.Fatalf("role = %q", c.Get("role").String())
	}
	fc := c.Get("parts.0.functionCall")
	if fc.Get("name").String() != "lookup" {
		t.Fatalf("functionCall.name = %q", fc.Get("name").String())
	}
	if fc.Get("args.q").String() != "go" {
		t.Fatalf("functionCall.args = %s", fc.Get("args").Raw)
	}
}

func TestRequestToGeminiTranslatesToolResponse(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"messages": [
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "42"}
		]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	contents := r.Get("contents").Array()
	if len(contents) != 2 {
		t.Fatalf("expected 2 content entries, got %d: %s", len(contents), r.Get("contents").Raw)
	}
	fr := contents[1].Get("parts.0.functionResponse")
	if fr.Get("name").String() != "lookup" {
		t.Fatalf("functionResponse.name = %q", fr.Get("name").String())
	}
	if fr.Get("response.content").String() != "42" {
		t.Fatalf("functionResponse.response.content = %q", fr.Get("response.content").String())
	}
}

func TestRequestToGeminiTranslatesTools(t *testing.T) {
	in := `{
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"type": "function", "function": {"name": "lookup", "description": "look things up", "parameters": {"type": "object"}}}]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	decl := r.Get("tools.0.functionDeclarations.0")
	if decl.Get("name").String() != "lookup" {
		t.Fatalf("declaration name = %q", decl.Get("name").String())
	}
}
