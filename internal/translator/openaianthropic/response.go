package openaianthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cliproxy-gateway/gateway/internal/translator"
)

func chunkID() string { return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano()) }

func sseChunk(v any) string {
	b, _ := json.Marshal(v)
	return "data: " + string(b) + "\n\n"
}

// StreamToOpenAI converts one Anthropic SSE event body into zero or more
// OpenAI chat.completion.chunk SSE lines, tracking content-block bookkeeping
// in state across calls.
func StreamToOpenAI(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	evt := gjson.ParseBytes(rawJSON)
	switch evt.Get("type").String() {
	case "message_start":
		state.MessageStarted = true
		state.AnthropicMsgID = evt.Get("message.id").String()
		return nil

	case "content_block_start":
		block := evt.Get("content_block")
		if block.Get("type").String() == "tool_use" {
			idx := int(evt.Get("index").Int())
			delta := map[string]any{
				"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
				"choices": []any{map[string]any{
					"index": 0, "finish_reason": nil,
					"delta": map[string]any{"tool_calls": []any{map[string]any{
						"index": idx, "id": block.Get("id").String(), "type": "function",
						"function": map[string]any{"name": block.Get("name").String(), "arguments": ""},
					}}},
				}},
			}
			return []string{sseChunk(delta)}
		}
		return nil

	case "content_block_delta":
		d := evt.Get("delta")
		switch d.Get("type").String() {
		case "text_delta":
			chunk := map[string]any{
				"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
				"choices": []any{map[string]any{"index": 0, "finish_reason": nil, "delta": map[string]any{"content": d.Get("text").String()}}},
			}
			return []string{sseChunk(chunk)}
		case "input_json_delta":
			idx := int(evt.Get("index").Int())
			chunk := map[string]any{
				"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
				"choices": []any{map[string]any{
					"index": 0, "finish_reason": nil,
					"delta": map[string]any{"tool_calls": []any{map[string]any{
						"index": idx, "function": map[string]any{"arguments": d.Get("partial_json").String()},
					}}},
				}},
			}
			return []string{sseChunk(chunk)}
		}
		return nil

	case "message_delta":
		reason := evt.Get("delta.stop_reason").String()
		openaiReason, _, _ := translator.MapFinishReason(translator.ProtocolAnthropic, reason)
		chunk := map[string]any{
			"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
			"choices": []any{map[string]any{"index": 0, "finish_reason": openaiReason, "delta": map[string]any{}}},
		}
		lines := []string{sseChunk(chunk)}
		if u := evt.Get("usage"); u.Exists() {
			usageChunk := map[string]any{
				"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
				"choices": []any{},
				"usage": map[string]any{
					"prompt_tokens":     u.Get("input_tokens").Int(),
					"completion_tokens": u.Get("output_tokens").Int(),
					"total_tokens":      u.Get("input_tokens").Int() + u.Get("output_tokens").Int(),
				},
			}
			lines = append(lines, sseChunk(usageChunk))
		}
		return lines

	case "message_stop":
		state.TerminalEmitted = true
		return []string{"data: [DONE]\n\n"}
	}
	return nil
}

// NonStreamToOpenAI converts a complete Anthropic messages response into an
// OpenAI chat.completion response body.
func NonStreamToOpenAI(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	var text string
	var toolCalls []any
	root.Get("content").ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "text":
			text += part.Get("text").String()
		case "tool_use":
			toolCalls = append(toolCalls, map[string]any{
				"id": part.Get("id").String(), "type": "function",
				"function": map[string]any{"name": part.Get("name").String(), "arguments": part.Get("input").Raw},
			})
		}
		return true
	})

	openaiReason, _, _ := translator.MapFinishReason(translator.ProtocolAnthropic, root.Get("stop_reason").String())
	message := map[string]any{"role": "assistant", "content": text}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		message["content"] = nil
	}

	resp := map[string]any{
		"id":      root.Get("id").String(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   modelName,
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": openaiReason}},
		"usage": map[string]any{
			"prompt_tokens":     root.Get("usage.input_tokens").Int(),
			"completion_tokens": root.Get("usage.output_tokens").Int(),
			"total_tokens":      root.Get("usage.input_tokens").Int() + root.Get("usage.output_tokens").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
