// Package anthropicopenai translates between Anthropic Messages and OpenAI
// Chat Completions shapes for the reverse direction: an Anthropic-speaking
// client routed to an OpenAI-speaking upstream.
package anthropicopenai

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RequestToOpenAI converts an Anthropic messages request body into OpenAI's
// chat-completions shape.
func RequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"model":"","messages":[]}`
	root := gjson.ParseBytes(rawJSON)

	model := modelName
	if m := root.Get("model"); m.Exists() {
		model = m.String()
	}
	out, _ = sjson.Set(out, "model", model)
	out, _ = sjson.Set(out, "stream", stream)

	if v := root.Get("max_tokens"); v.Exists() {
		out, _ = sjson.Set(out, "max_tokens", v.Int())
	}
	if v := root.Get("temperature"); v.Exists() {
		out, _ = sjson.Set(out, "temperature", v.Float())
	}
	if v := root.Get("top_p"); v.Exists() {
		out, _ = sjson.Set(out, "top_p", v.Float())
	}
	if v := root.Get("stop_sequences"); v.IsArray() {
		var stops []string
		v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
		out, _ = sjson.Set(out, "stop", stops)
	}

	var openaiMessages []any
	if sys := root.Get("system"); sys.Exists() {
		if sys.Type == gjson.String {
			openaiMessages = append(openaiMessages, map[string]any{"role": "system", "content": sys.String()})
		} else if sys.IsArray() {
			var text string
			sys.ForEach(func(_, part gjson.Result) bool {
				text += part.Get("text").String()
				return true
			})
			openaiMessages = append(openaiMessages, map[string]any{"role": "system", "content": text})
		}
	}

	toolNameByUseID := map[string]string{}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if content.Type == gjson.String {
			openaiMessages = append(openaiMessages, map[string]any{"role": role, "content": content.String()})
			return true
		}

		var textParts string
		var toolCalls []any
		var toolResults []any
		content.ForEach(func(_, part gjson.Result) bool {
			switch part.Get("type").String() {
			case "text":
				textParts += part.Get("text").String()
			case "tool_use":
				id := part.Get("id").String()
				name := part.Get("name").String()
				toolNameByUseID[id] = name
				toolCalls = append(toolCalls, map[string]any{
					"id": id, "type": "function",
					"function": map[string]any{"name": name, "arguments": part.Get("input").Raw},
				})
			case "tool_result":
				toolResults = append(toolResults, map[string]any{
					"role":         "tool",
					"tool_call_id": part.Get("tool_use_id").String(),
					"content":      part.Get("content").String(),
				})
			case "image":
				mediaType := part.Get("source.media_type").String()
				data := part.Get("source.data").String()
				_ = mediaType
				_ = data
			}
			return true
		})

		if len(toolResults) > 0 {
			openaiMessages = append(openaiMessages, toolResults...)
			return true
		}

		m := map[string]any{"role": role}
		if textParts != "" {
			m["content"] = textParts
		} else {
			m["content"] = nil
		}
		if len(toolCalls) > 0 {
			m["tool_calls"] = toolCalls
		}
		openaiMessages = append(openaiMessages, m)
		return true
	})
	out, _ = sjson.Set(out, "messages", openaiMessages)

	if tools := root.Get("tools"); tools.IsArray() {
		var openaiTools []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			openaiTools = append(openaiTools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Get("name").String(),
					"description": tool.Get("description").String(),
					"parameters":  gjson.Parse(tool.Get("input_schema").Raw).Value(),
				},
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", openaiTools)
	}
	if tc := root.Get("tool_choice"); tc.Exists() {
		switch tc.Get("type").String() {
		case "auto":
			out, _ = sjson.Set(out, "tool_choice", "auto")
		case "none":
			out, _ = sjson.Set(out, "tool_choice", "none")
		case "any":
			out, _ = sjson.Set(out, "tool_choice", "required")
		case "tool":
			out, _ = sjson.Set(out, "tool_choice", map[string]any{"type": "function", "function": map[string]any{"name": tc.Get("name").String()}})
		}
	}

	return []byte(out)
}
