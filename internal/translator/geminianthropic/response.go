package geminianthropic

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/cliproxy-gateway/gateway/internal/translator"
)

// StreamToGemini converts one Anthropic SSE event body into a Gemini
// streamGenerateContent JSON chunk, or nil for events with no Gemini
// analogue (message_start, content_block_start/stop by themselves).
func StreamToGemini(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	evt := gjson.ParseBytes(rawJSON)
	switch evt.Get("type").String() {
	case "content_block_delta":
		d := evt.Get("delta")
		var parts []any
		switch d.Get("type").String() {
		case "text_delta":
			parts = append(parts, map[string]any{"text": d.Get("text").String()})
		case "input_json_delta":
			parts = append(parts, map[string]any{"functionCall": map[string]any{"args": gjson.Parse(d.Get("partial_json").String()).Value()}})
		default:
			return nil
		}
		b, _ := json.Marshal(map[string]any{"candidates": []any{map[string]any{"content": map[string]any{"role": "model", "parts": parts}, "index": 0}}})
		return []string{string(b)}

	case "message_delta":
		reason := evt.Get("delta.stop_reason").String()
		_, _, geminiReason := translator.MapFinishReason(translator.ProtocolAnthropic, reason)
		candidate := map[string]any{"content": map[string]any{"role": "model", "parts": []any{}}, "index": 0}
		if geminiReason != "" {
			candidate["finishReason"] = geminiReason
			state.TerminalEmitted = true
		}
		out := map[string]any{"candidates": []any{candidate}}
		if u := evt.Get("usage"); u.Exists() {
			out["usageMetadata"] = map[string]any{
				"promptTokenCount":     u.Get("input_tokens").Int(),
				"candidatesTokenCount": u.Get("output_tokens").Int(),
			}
		}
		b, _ := json.Marshal(out)
		return []string{string(b)}
	}
	return nil
}

// NonStreamToGemini converts a complete Anthropic messages response into a
// Gemini generateContent response body.
func NonStreamToGemini(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	var parts []any
	root.Get("content").ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "text":
			parts = append(parts, map[string]any{"text": part.Get("text").String()})
		case "tool_use":
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": part.Get("name").String(), "args": gjson.Parse(part.Get("input").Raw).Value()},
			})
		}
		return true
	})

	_, _, geminiReason := translator.MapFinishReason(translator.ProtocolAnthropic, root.Get("stop_reason").String())
	resp := map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": geminiReason,
			"index":        0,
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     root.Get("usage.input_tokens").Int(),
			"candidatesTokenCount": root.Get("usage.output_tokens").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
