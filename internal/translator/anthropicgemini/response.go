package anthropicgemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cliproxy-gateway/gateway/internal/translator"
)

func sseEvent(eventType string, v any) string {
	b, _ := json.Marshal(v)
	return "event: " + eventType + "\ndata: " + string(b) + "\n\n"
}

// StreamToAnthropic converts one Gemini streamGenerateContent JSON chunk
// into zero or more Anthropic SSE events.
func StreamToAnthropic(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	chunk := gjson.ParseBytes(rawJSON)
	var out []string

	if !state.MessageStarted {
		state.MessageStarted = true
		state.AnthropicMsgID = fmt.Sprintf("msg_%d", time.Now().UnixNano())
		out = append(out, sseEvent("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": state.AnthropicMsgID, "type": "message", "role": "assistant",
				"content": []any{}, "model": modelName,
				"usage": map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		}))
		out = append(out, sseEvent("content_block_start", map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "text", "text": ""},
		}))
	}

	candidate := chunk.Get("candidates.0")
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type": "content_block_delta", "index": 0,
				"delta": map[string]any{"type": "text_delta", "text": t.String()},
			}))
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			args, _ := json.Marshal(gjson.Parse(fc.Get("args").Raw).Value())
			state.ContentIndex++
			out = append(out, sseEvent("content_block_start", map[string]any{
				"type": "content_block_start", "index": state.ContentIndex,
				"content_block": map[string]any{"type": "tool_use", "id": "toolu_" + fc.Get("name").String(), "name": fc.Get("name").String(), "input": map[string]any{}},
			}))
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type": "content_block_delta", "index": state.ContentIndex,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": string(args)},
			}))
			out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": state.ContentIndex}))
		}
		return true
	})

	if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() != "" {
		_, anthropicReason, _ := translator.MapFinishReason(translator.ProtocolGemini, fr.String())
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0}))
		usage := map[string]any{}
		if u := chunk.Get("usageMetadata"); u.Exists() {
			usage = map[string]any{"input_tokens": u.Get("promptTokenCount").Int(), "output_tokens": u.Get("candidatesTokenCount").Int()}
		}
		out = append(out, sseEvent("message_delta", map[string]any{
			"type": "message_delta", "delta": map[string]any{"stop_reason": anthropicReason}, "usage": usage,
		}))
		state.TerminalEmitted = true
		out = append(out, sseEvent("message_stop", map[string]any{"type": "message_stop"}))
	}

	return out
}

// NonStreamToAnthropic converts a complete Gemini generateContent response
// into an Anthropic messages response body.
func NonStreamToAnthropic(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	candidate := root.Get("candidates.0")

	var content []any
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			content = append(content, map[string]any{"type": "text", "text": t.String()})
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			content = append(content, map[string]any{
				"type": "tool_use", "id": "toolu_" + fc.Get("name").String(), "name": fc.Get("name").String(),
				"input": gjson.Parse(fc.Get("args").Raw).Value(),
			})
		}
		return true
	})

	_, anthropicReason, _ := translator.MapFinishReason(translator.ProtocolGemini, candidate.Get("finishReason").String())
	resp := map[string]any{
		"id": fmt.Sprintf("msg_%d", time.Now().UnixNano()), "type": "message", "role": "assistant", "model": modelName,
		"content": content, "stop_reason": anthropicReason,
		"usage": map[string]any{
			"input_tokens":  root.Get("usageMetadata.promptTokenCount").Int(),
			"output_tokens": root.Get("usageMetadata.candidatesTokenCount").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
