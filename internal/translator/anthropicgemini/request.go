// Package anthropicgemini translates between Anthropic Messages and Gemini
// generateContent request/response shapes.
package anthropicgemini

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestToGemini converts an Anthropic messages request body into Gemini's
// generateContent request shape.
func RequestToGemini(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"contents":[]}`
	root := gjson.ParseBytes(rawJSON)

	if sys := root.Get("system"); sys.Exists() {
		var text string
		if sys.Type == gjson.String {
			text = sys.String()
		} else {
			sys.ForEach(func(_, p gjson.Result) bool { text += p.Get("text").String(); return true })
		}
		if text != "" {
			out, _ = sjson.Set(out, "systemInstruction", map[string]any{"parts": []any{map[string]any{"text": text}}})
		}
	}

	var contents []any
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := "user"
		if msg.Get("role").String() == "assistant" {
			role = "model"
		}
		content := msg.Get("content")
		var parts []any
		if content.Type == gjson.String {
			parts = append(parts, map[string]any{"text": content.String()})
		} else {
			content.ForEach(func(_, part gjson.Result) bool {
				switch part.Get("type").String() {
				case "text":
					parts = append(parts, map[string]any{"text": part.Get("text").String()})
				case "tool_use":
					parts = append(parts, map[string]any{
						"functionCall": map[string]any{"name": part.Get("name").String(), "args": gjson.Parse(part.Get("input").Raw).Value()},
					})
				case "tool_result":
					parts = append(parts, map[string]any{
						"functionResponse": map[string]any{
							"name":     part.Get("tool_use_id").String(),
							"response": map[string]any{"content": part.Get("content").String()},
						},
					})
					role = "user"
				case "image":
					parts = append(parts, map[string]any{
						"inlineData": map[string]any{"mimeType": part.Get("source.media_type").String(), "data": part.Get("source.data").String()},
					})
				}
				return true
			})
		}
		if len(parts) == 0 {
			return true
		}
		contents = append(contents, map[string]any{"role": role, "parts": parts})
		return true
	})
	out, _ = sjson.Set(out, "contents", contents)

	genConfig := map[string]any{}
	if v := root.Get("max_tokens"); v.Exists() {
		genConfig["maxOutputTokens"] = v.Int()
	}
	if v := root.Get("temperature"); v.Exists() {
		genConfig["temperature"] = v.Float()
	}
	if v := root.Get("top_p"); v.Exists() {
		genConfig["topP"] = v.Float()
	}
	if v := root.Get("stop_sequences"); v.IsArray() {
		var stops []string
		v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
		genConfig["stopSequences"] = stops
	}
	if len(genConfig) > 0 {
		out, _ = sjson.Set(out, "generationConfig", genConfig)
	}

	if tools := root.Get("tools"); tools.IsArray() {
		var decls []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			decls = append(decls, map[string]any{
				"name":        tool.Get("name").String(),
				"description": tool.Get("description").String(),
				"parameters":  gjson.Parse(tool.Get("input_schema").Raw).Value(),
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", []any{map[string]any{"functionDeclarations": decls}})
	}

	return []byte(out)
}
