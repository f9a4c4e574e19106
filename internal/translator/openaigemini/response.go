package openaigemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cliproxy-gateway/gateway/internal/translator"
)

func chunkID() string { return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano()) }

func sseData(v any) string {
	b, _ := json.Marshal(v)
	return "data: " + string(b) + "\n\n"
}

// StreamToOpenAI converts one Gemini streamGenerateContent JSON chunk into
// an OpenAI chat.completion.chunk SSE line, followed by a usage chunk when
// usageMetadata is present and by "data: [DONE]" when a finishReason is set.
func StreamToOpenAI(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	chunk := gjson.ParseBytes(rawJSON)
	if !state.MessageStarted {
		state.MessageStarted = true
		state.AnthropicMsgID = chunkID()
	}

	candidate := chunk.Get("candidates.0")
	delta := map[string]any{}
	var text string
	var toolCalls []any
	idx := 0
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			text += t.String()
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			args, _ := json.Marshal(gjson.Parse(fc.Get("args").Raw).Value())
			toolCalls = append(toolCalls, map[string]any{
				"index": idx, "id": fmt.Sprintf("call_%d", idx), "type": "function",
				"function": map[string]any{"name": fc.Get("name").String(), "arguments": string(args)},
			})
			idx++
		}
		return true
	})
	if text != "" {
		delta["content"] = text
	}
	if len(toolCalls) > 0 {
		delta["tool_calls"] = toolCalls
	}

	var finishReason any
	if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() != "" {
		openaiReason, _, _ := translator.MapFinishReason(translator.ProtocolGemini, fr.String())
		finishReason = openaiReason
	}

	out := map[string]any{
		"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
		"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finishReason}},
	}
	lines := []string{sseData(out)}

	if usage := chunk.Get("usageMetadata"); usage.Exists() {
		lines = append(lines, sseData(map[string]any{
			"id": state.AnthropicMsgID, "object": "chat.completion.chunk", "created": time.Now().Unix(), "model": modelName,
			"choices": []any{},
			"usage": map[string]any{
				"prompt_tokens":     usage.Get("promptTokenCount").Int(),
				"completion_tokens": usage.Get("candidatesTokenCount").Int(),
				"total_tokens":      usage.Get("totalTokenCount").Int(),
			},
		}))
	}
	if finishReason != nil {
		state.TerminalEmitted = true
		lines = append(lines, "data: [DONE]\n\n")
	}
	return lines
}

// NonStreamToOpenAI converts a complete Gemini generateContent response into
// an OpenAI chat.completion response body.
func NonStreamToOpenAI(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	candidate := root.Get("candidates.0")

	var text string
	var toolCalls []any
	idx := 0
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			text += t.String()
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			args, _ := json.Marshal(gjson.Parse(fc.Get("args").Raw).Value())
			toolCalls = append(toolCalls, map[string]any{
				"id": fmt.Sprintf("call_%d", idx), "type": "function",
				"function": map[string]any{"name": fc.Get("name").String(), "arguments": string(args)},
			})
			idx++
		}
		return true
	})

	openaiReason, _, _ := translator.MapFinishReason(translator.ProtocolGemini, candidate.Get("finishReason").String())
	message := map[string]any{"role": "assistant", "content": text}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		message["content"] = nil
	}

	resp := map[string]any{
		"id": chunkID(), "object": "chat.completion", "created": time.Now().Unix(), "model": modelName,
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": openaiReason}},
		"usage": map[string]any{
			"prompt_tokens":     root.Get("usageMetadata.promptTokenCount").Int(),
			"completion_tokens": root.Get("usageMetadata.candidatesTokenCount").Int(),
			"total_tokens":      root.Get("usageMetadata.totalTokenCount").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
