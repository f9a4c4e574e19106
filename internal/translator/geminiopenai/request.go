// Package geminiopenai translates between Gemini generateContent and OpenAI
// Chat Completions shapes for the reverse direction: a Gemini-speaking
// client routed to an OpenAI-speaking upstream.
package geminiopenai

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestToOpenAI converts a Gemini generateContent request body into
// OpenAI's chat-completions shape.
func RequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"model":"","messages":[]}`
	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)
	root := gjson.ParseBytes(rawJSON)

	var messages []any
	if sys := root.Get("systemInstruction"); sys.Exists() {
		var text string
		sys.Get("parts").ForEach(func(_, p gjson.Result) bool { text += p.Get("text").String(); return true })
		if text != "" {
			messages = append(messages, map[string]any{"role": "system", "content": text})
		}
	}

	root.Get("contents").ForEach(func(_, c gjson.Result) bool {
		role := "user"
		if c.Get("role").String() == "model" {
			role = "assistant"
		}
		var text string
		var toolCalls []any
		var funcResponses []any
		c.Get("parts").ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text"); t.Exists() {
				text += t.String()
			}
			if fc := part.Get("functionCall"); fc.Exists() {
				args, _ := json.Marshal(gjson.Parse(fc.Get("args").Raw).Value())
				toolCalls = append(toolCalls, map[string]any{
					"id": "call_" + fc.Get("name").String(), "type": "function",
					"function": map[string]any{"name": fc.Get("name").String(), "arguments": string(args)},
				})
			}
			if fr := part.Get("functionResponse"); fr.Exists() {
				funcResponses = append(funcResponses, map[string]any{
					"role":         "tool",
					"tool_call_id": "call_" + fr.Get("name").String(),
					"content":      fr.Get("response.content").String(),
				})
			}
			return true
		})
		if len(funcResponses) > 0 {
			messages = append(messages, funcResponses...)
			return true
		}
		m := map[string]any{"role": role}
		if text != "" {
			m["content"] = text
		} else {
			m["content"] = nil
		}
		if len(toolCalls) > 0 {
			m["tool_calls"] = toolCalls
		}
		messages = append(messages, m)
		return true
	})
	out, _ = sjson.Set(out, "messages", messages)

	if cfg := root.Get("generationConfig"); cfg.Exists() {
		if v := cfg.Get("temperature"); v.Exists() {
			out, _ = sjson.Set(out, "temperature", v.Float())
		}
		if v := cfg.Get("topP"); v.Exists() {
			out, _ = sjson.Set(out, "top_p", v.Float())
		}
		if v := cfg.Get("maxOutputTokens"); v.Exists() {
			out, _ = sjson.Set(out, "max_tokens", v.Int())
		}
		if v := cfg.Get("stopSequences"); v.IsArray() {
			var stops []string
			v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
			out, _ = sjson.Set(out, "stop", stops)
		}
	}

	if tools := root.Get("tools"); tools.IsArray() {
		var openaiTools []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			tool.Get("functionDeclarations").ForEach(func(_, decl gjson.Result) bool {
				openaiTools = append(openaiTools, map[string]any{
					"type": "function",
					"function": map[string]any{
						"name":        decl.Get("name").String(),
						"description": decl.Get("description").String(),
						"parameters":  gjson.Parse(decl.Get("parameters").Raw).Value(),
					},
				})
				return true
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", openaiTools)
	}

	return []byte(out)
}
