// Package openaigemini translates between OpenAI Chat Completions and
// Gemini generateContent request/response shapes.
package openaigemini

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestToGemini converts an OpenAI chat-completions request body into
// Gemini's generateContent request shape.
func RequestToGemini(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"contents":[]}`
	root := gjson.ParseBytes(rawJSON)

	var contents []any
	var systemParts []any
	toolNameByCallID := map[string]string{}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if role == "system" {
			if content.Type == gjson.String {
				systemParts = append(systemParts, map[string]any{"text": content.String()})
			}
			return true
		}

		geminiRole := "user"
		if role == "assistant" {
			geminiRole = "model"
		}

		if role == "tool" {
			callID := msg.Get("tool_call_id").String()
			name := toolNameByCallID[callID]
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []any{map[string]any{
					"functionResponse": map[string]any{"name": name, "response": map[string]any{"content": content.String()}},
				}},
			})
			return true
		}

		var parts []any
		if content.Type == gjson.String && content.String() != "" {
			parts = append(parts, map[string]any{"text": content.String()})
		} else if content.IsArray() {
			content.ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "text" {
					parts = append(parts, map[string]any{"text": part.Get("text").String()})
				}
				return true
			})
		}

		msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
			name := call.Get("function.name").String()
			toolNameByCallID[call.Get("id").String()] = name
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": name, "args": gjson.Parse(call.Get("function.arguments").String()).Value()},
			})
			return true
		})

		if len(parts) == 0 {
			return true
		}
		contents = append(contents, map[string]any{"role": geminiRole, "parts": parts})
		return true
	})

	out, _ = sjson.Set(out, "contents", contents)
	if len(systemParts) > 0 {
		out, _ = sjson.Set(out, "systemInstruction", map[string]any{"parts": systemParts})
	}

	genConfig := map[string]any{}
	if v := root.Get("temperature"); v.Exists() {
		genConfig["temperature"] = v.Float()
	}
	if v := root.Get("top_p"); v.Exists() {
		genConfig["topP"] = v.Float()
	}
	if v := root.Get("max_tokens"); v.Exists() {
		genConfig["maxOutputTokens"] = v.Int()
	}
	if v := root.Get("stop"); v.Exists() {
		var stops []string
		if v.IsArray() {
			v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
		} else {
			stops = []string{v.String()}
		}
		genConfig["stopSequences"] = stops
	}
	if len(genConfig) > 0 {
		out, _ = sjson.Set(out, "generationConfig", genConfig)
	}

	if tools := root.Get("tools"); tools.IsArray() {
		var decls []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			fn := tool.Get("function")
			decls = append(decls, map[string]any{
				"name":        fn.Get("name").String(),
				"description": fn.Get("description").String(),
				"parameters":  gjson.Parse(fn.Get("parameters").Raw).Value(),
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", []any{map[string]any{"functionDeclarations": decls}})
	}

	return []byte(out)
}
