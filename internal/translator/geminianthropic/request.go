// Package geminianthropic translates between Gemini generateContent and
// Anthropic Messages shapes for the reverse direction: a Gemini-speaking
// client routed to an Anthropic-speaking upstream.
package geminianthropic

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestToAnthropic converts a Gemini generateContent request body into
// Anthropic's messages shape.
func RequestToAnthropic(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"model":"","max_tokens":4096,"messages":[]}`
	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)
	root := gjson.ParseBytes(rawJSON)

	if sys := root.Get("systemInstruction"); sys.Exists() {
		var text string
		sys.Get("parts").ForEach(func(_, p gjson.Result) bool { text += p.Get("text").String(); return true })
		if text != "" {
			out, _ = sjson.Set(out, "system", text)
		}
	}

	var messages []any
	root.Get("contents").ForEach(func(_, c gjson.Result) bool {
		role := "user"
		if c.Get("role").String() == "model" {
			role = "assistant"
		}
		var parts []any
		c.Get("parts").ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text"); t.Exists() {
				parts = append(parts, map[string]any{"type": "text", "text": t.String()})
			}
			if fc := part.Get("functionCall"); fc.Exists() {
				parts = append(parts, map[string]any{
					"type": "tool_use", "id": "toolu_" + fc.Get("name").String(), "name": fc.Get("name").String(),
					"input": gjson.Parse(fc.Get("args").Raw).Value(),
				})
			}
			if fr := part.Get("functionResponse"); fr.Exists() {
				parts = append(parts, map[string]any{
					"type": "tool_result", "tool_use_id": "toolu_" + fr.Get("name").String(),
					"content": fr.Get("response.content").String(),
				})
				role = "user"
			}
			if inline := part.Get("inlineData"); inline.Exists() {
				parts = append(parts, map[string]any{
					"type":   "image",
					"source": map[string]any{"type": "base64", "media_type": inline.Get("mimeType").String(), "data": inline.Get("data").String()},
				})
			}
			return true
		})
		if len(parts) == 0 {
			return true
		}
		messages = append(messages, map[string]any{"role": role, "content": parts})
		return true
	})
	out, _ = sjson.Set(out, "messages", messages)

	if cfg := root.Get("generationConfig"); cfg.Exists() {
		if v := cfg.Get("maxOutputTokens"); v.Exists() {
			out, _ = sjson.Set(out, "max_tokens", v.Int())
		}
		if v := cfg.Get("temperature"); v.Exists() {
			out, _ = sjson.Set(out, "temperature", v.Float())
		}
		if v := cfg.Get("topP"); v.Exists() {
			out, _ = sjson.Set(out, "top_p", v.Float())
		}
		if v := cfg.Get("stopSequences"); v.IsArray() {
			var stops []string
			v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
			out, _ = sjson.Set(out, "stop_sequences", stops)
		}
	}

	if tools := root.Get("tools"); tools.IsArray() {
		var anthropicTools []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			tool.Get("functionDeclarations").ForEach(func(_, decl gjson.Result) bool {
				anthropicTools = append(anthropicTools, map[string]any{
					"name":         decl.Get("name").String(),
					"description":  decl.Get("description").String(),
					"input_schema": gjson.Parse(decl.Get("parameters").Raw).Value(),
				})
				return true
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", anthropicTools)
	}

	return []byte(out)
}
