package anthropicgemini

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRequestToGeminiMapsSystemAndUser(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"max_tokens": 512,
		"system": "be terse",
		"messages": [{"role": "user", "content": "hi"}]
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
	if r.Get("generationConfig.maxOutputTokens").Int() != 512 {
		t.Fatalf("maxOutputTokens = %d", r.Get("generationConfig.maxOutputTokens").Int())
	}
}

func TestRequestToGeminiTranslatesToolUseAndResult(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"messages": [
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {"q": "go"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "42"}
			]}
		]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	contents := r.Get("contents").Array()
	if len(contents) != 2 {
		t.Fatalf("expected 2 content entries, got %d: %s", len(contents), r.Get("contents").Raw)
	}
	if contents[0].Get("role").String() != "model" {
		t.Fatalf("role = %q", contents[0].Get("role").String())
	}
	fc := contents[0].Get("parts.0.functionCall")
	if fc.Get("name").String() != "lookup" {
		t.Fatalf("functionCall.name = %q", fc.Get("name").String())
	}
	if fc.Get("args.q").String() != "go" {
		t.Fatalf("functionCall.args = %s", fc.Get("args").Raw)
	}
	fr := contents[1].Get("parts.0.functionResponse")
	if fr.Get("response.content").String() != "42" {
		t.Fatalf("functionResponse.response.content = %q", fr.Get("response.content").String())
	}
}

func TestRequestToGeminiTranslatesImage(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"messages": [
			{"role": "user", "content": [
				{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "Zm9v"}}
			]}
		]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	inline := r.Get("contents.0.parts.0.inlineData")
	if inline.Get("mimeType").String() != "image/png" {
		t.Fatalf("mimeType = %q", inline.Get("mimeType").String())
	}
	if inline.Get("data").String() != "Zm9v" {
		t.Fatalf("data = %q", inline.Get("data").String())
	}
}

func TestRequestToGeminiTranslatesTools(t *testing.T) {
	in := `{
		"model": "claude-opus-4-6",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"name": "lookup", "description": "look things up", "input_schema": {"type": "object"}}]
	}`
	out := RequestToGemini("gemini-2.5-pro", []byte(in), false)
	r := gjson.ParseBytes(out)
	decl := r.Get("tools.0.functionDeclarations.0")
	if decl.Get("name").String() != "lookup" {
		t.Fatalf("declaration name = %q", decl.Get("name").String())
	}
}
