package anthropicopenai

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

// StreamToAnthropic converts one OpenAI chat.completion.chunk SSE body into
// zero or more Anthropic SSE events, synthesizing message_start on the first
// chunk and message_stop once OpenAI signals [DONE]; a finish_reason yields
// the closing content_block_stop and a message_delta carrying stop_reason.
func StreamToAnthropic(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	if string(rawJSON) == "[DONE]" {
		if state.TerminalEmitted {
			return nil
		}
		state.TerminalEmitted = true
		return []string{sseEvent("message_stop", map[string]any{"type": "message_stop"})}
	}

	chunk := gjson.ParseBytes(rawJSON)
	var out []string

	if !state.MessageStarted {
		state.MessageStarted = true
		state.AnthropicMsgID = chunk.Get("id").String()
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

	choice := chunk.Get("choices.0")
	delta := choice.Get("delta")

	if text := delta.Get("content"); text.Exists() && text.String() != "" {
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": text.String()},
		}))
	}

	delta.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		idx := int(call.Get("index").Int()) + 1
		if name := call.Get("function.name").String(); name != "" {
			out = append(out, sseEvent("content_block_start", map[string]any{
				"type": "content_block_start", "index": idx,
				"content_block": map[string]any{"type": "tool_use", "id": call.Get("id").String(), "name": name, "input": map[string]any{}},
			}))
		}
		if args := call.Get("function.arguments").String(); args != "" {
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type": "content_block_delta", "index": idx,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
			}))
		}
		return true
	})

	if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
		_, anthropicReason, _ := translator.MapFinishReason(translator.ProtocolOpenAI, reason.String())
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0}))
		out = append(out, sseEvent("message_delta", map[string]any{
			"type": "message_delta",
			"delta": map[string]any{"stop_reason": anthropicReason},
		}))
	}

	if usage := chunk.Get("usage"); usage.Exists() {
		out = append(out, sseEvent("message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{},
			"usage": map[string]any{
				"input_tokens":  usage.Get("prompt_tokens").Int(),
				"output_tokens": usage.Get("completion_tokens").Int(),
			},
		}))
	}

	return out
}

// NonStreamToAnthropic converts a complete OpenAI chat.completion response
// into an Anthropic messages response body.
func NonStreamToAnthropic(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	choice := root.Get("choices.0")
	message := choice.Get("message")

	var content []any
	if text := message.Get("content"); text.Exists() && text.Type == gjson.String {
		content = append(content, map[string]any{"type": "text", "text": text.String()})
	}
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		content = append(content, map[string]any{
			"type": "tool_use", "id": call.Get("id").String(), "name": call.Get("function.name").String(),
			"input": gjson.Parse(call.Get("function.arguments").String()).Value(),
		})
		return true
	})

	_, anthropicReason, _ := translator.MapFinishReason(translator.ProtocolOpenAI, choice.Get("finish_reason").String())

	id := root.Get("id").String()
	if id == "" {
		id = fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	resp := map[string]any{
		"id": id, "type": "message", "role": "assistant", "model": modelName,
		"content": content, "stop_reason": anthropicReason,
		"usage": map[string]any{
			"input_tokens":  root.Get("usage.prompt_tokens").Int(),
			"output_tokens": root.Get("usage.completion_tokens").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
