// Package openaianthropic translates between OpenAI Chat Completions and
// Anthropic Messages request/response shapes, operating directly on raw
// JSON via gjson/sjson rather than marshaling through Go structs, matching
// the teacher's translator idiom.
package openaianthropic

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func genToolUseID() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var b strings.Builder
	for i := 0; i < 24; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		b.WriteByte(letters[n.Int64()])
	}
	return "toolu_" + b.String()
}

// RequestToAnthropic converts an OpenAI chat-completions request body into
// Anthropic's messages shape (spec §4.6).
func RequestToAnthropic(modelName string, rawJSON []byte, stream bool) []byte {
	out := `{"model":"","max_tokens":4096,"messages":[]}`
	root := gjson.ParseBytes(rawJSON)

	model := modelName
	if model == "" {
		if m := root.Get("model"); m.Exists() {
			model = m.String()
		}
	}
	out, _ = sjson.Set(out, "model", model)

	if v := root.Get("max_tokens"); v.Exists() {
		out, _ = sjson.Set(out, "max_tokens", v.Int())
	}
	if v := root.Get("temperature"); v.Exists() {
		out, _ = sjson.Set(out, "temperature", v.Float())
	}
	if v := root.Get("top_p"); v.Exists() {
		out, _ = sjson.Set(out, "top_p", v.Float())
	}
	if v := root.Get("stop"); v.Exists() {
		if v.IsArray() {
			var stops []string
			v.ForEach(func(_, val gjson.Result) bool { stops = append(stops, val.String()); return true })
			out, _ = sjson.Set(out, "stop_sequences", stops)
		} else {
			out, _ = sjson.Set(out, "stop_sequences", []string{v.String()})
		}
	}
	out, _ = sjson.Set(out, "stream", stream)

	var anthropicMessages []any
	var systemParts []string
	toolIDByCallID := map[string]string{}

	if messages := root.Get("messages"); messages.IsArray() {
		messages.ForEach(func(_, msg gjson.Result) bool {
			role := msg.Get("role").String()
			content := msg.Get("content")

			switch role {
			case "system":
				if content.Type == gjson.String {
					systemParts = append(systemParts, content.String())
				}
				return true
			case "tool":
				callID := msg.Get("tool_call_id").String()
				toolUseID, ok := toolIDByCallID[callID]
				if !ok {
					toolUseID = callID
				}
				anthropicMessages = append(anthropicMessages, map[string]any{
					"role": "user",
					"content": []any{map[string]any{
						"type":        "tool_result",
						"tool_use_id": toolUseID,
						"content":     content.String(),
					}},
				})
				return true
			}

			var parts []any
			if content.Type == gjson.String && content.String() != "" {
				parts = append(parts, map[string]any{"type": "text", "text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					switch part.Get("type").String() {
					case "text":
						parts = append(parts, map[string]any{"type": "text", "text": part.Get("text").String()})
					case "image_url":
						url := part.Get("image_url.url").String()
						if strings.HasPrefix(url, "data:") {
							segs := strings.SplitN(url, ",", 2)
							mediaType := strings.TrimSuffix(strings.TrimPrefix(segs[0], "data:"), ";base64")
							data := ""
							if len(segs) == 2 {
								data = segs[1]
							}
							parts = append(parts, map[string]any{
								"type":   "image",
								"source": map[string]any{"type": "base64", "media_type": mediaType, "data": data},
							})
						}
					}
					return true
				})
			}

			if toolCalls := msg.Get("tool_calls"); toolCalls.IsArray() {
				toolCalls.ForEach(func(_, call gjson.Result) bool {
					id := call.Get("id").String()
					useID := genToolUseID()
					toolIDByCallID[id] = useID
					var input any
					inputStr := call.Get("function.arguments").String()
					input = gjson.Parse(inputStr).Value()
					if input == nil {
						input = map[string]any{}
					}
					parts = append(parts, map[string]any{
						"type":  "tool_use",
						"id":    useID,
						"name":  call.Get("function.name").String(),
						"input": input,
					})
					return true
				})
			}

			if len(parts) == 0 {
				return true
			}
			outRole := role
			if outRole != "assistant" {
				outRole = "user"
			}
			anthropicMessages = append(anthropicMessages, map[string]any{"role": outRole, "content": parts})
			return true
		})
	}
	out, _ = sjson.Set(out, "messages", anthropicMessages)
	if len(systemParts) > 0 {
		out, _ = sjson.Set(out, "system", strings.Join(systemParts, "\n\n"))
	}

	if tools := root.Get("tools"); tools.IsArray() {
		var anthropicTools []any
		tools.ForEach(func(_, tool gjson.Result) bool {
			fn := tool.Get("function")
			anthropicTools = append(anthropicTools, map[string]any{
				"name":         fn.Get("name").String(),
				"description":  fn.Get("description").String(),
				"input_schema": gjson.Parse(fn.Get("parameters").Raw).Value(),
			})
			return true
		})
		out, _ = sjson.Set(out, "tools", anthropicTools)
	}
	if tc := root.Get("tool_choice"); tc.Exists() {
		switch tc.Type {
		case gjson.String:
			switch tc.String() {
			case "auto":
				out, _ = sjson.Set(out, "tool_choice", map[string]any{"type": "auto"})
			case "none":
				out, _ = sjson.Set(out, "tool_choice", map[string]any{"type": "none"})
			case "required":
				out, _ = sjson.Set(out, "tool_choice", map[string]any{"type": "any"})
			}
		default:
			if name := tc.Get("function.name").String(); name != "" {
				out, _ = sjson.Set(out, "tool_choice", map[string]any{"type": "tool", "name": name})
			}
		}
	}

	return []byte(out)
}
