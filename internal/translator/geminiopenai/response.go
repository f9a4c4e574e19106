package geminiopenai

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/cliproxy-gateway/gateway/internal/translator"
)

// StreamToGemini converts one OpenAI chat.completion.chunk SSE body into a
// Gemini streamGenerateContent JSON chunk.
func StreamToGemini(ctx context.Context, modelName string, rawJSON []byte, state *translator.StreamState) []string {
	if string(rawJSON) == "[DONE]" {
		return nil
	}
	chunk := gjson.ParseBytes(rawJSON)
	choice := chunk.Get("choices.0")
	delta := choice.Get("delta")

	var parts []any
	if text := delta.Get("content"); text.Exists() && text.String() != "" {
		parts = append(parts, map[string]any{"text": text.String()})
	}
	delta.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		if name := call.Get("function.name").String(); name != "" {
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{
					"name": name,
					"args": gjson.Parse(call.Get("function.arguments").String()).Value(),
				},
			})
		}
		return true
	})

	candidate := map[string]any{"content": map[string]any{"role": "model", "parts": parts}, "index": 0}
	if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
		_, _, geminiReason := translator.MapFinishReason(translator.ProtocolOpenAI, reason.String())
		candidate["finishReason"] = geminiReason
		state.TerminalEmitted = true
	}

	out := map[string]any{"candidates": []any{candidate}}
	if usage := chunk.Get("usage"); usage.Exists() {
		out["usageMetadata"] = map[string]any{
			"promptTokenCount":     usage.Get("prompt_tokens").Int(),
			"candidatesTokenCount": usage.Get("completion_tokens").Int(),
			"totalTokenCount":      usage.Get("total_tokens").Int(),
		}
	}
	b, _ := json.Marshal(out)
	return []string{string(b)}
}

// NonStreamToGemini converts a complete OpenAI chat.completion response into
// a Gemini generateContent response body.
func NonStreamToGemini(ctx context.Context, modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)
	choice := root.Get("choices.0")
	message := choice.Get("message")

	var parts []any
	if text := message.Get("content"); text.Exists() && text.Type == gjson.String {
		parts = append(parts, map[string]any{"text": text.String()})
	}
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{
				"name": call.Get("function.name").String(),
				"args": gjson.Parse(call.Get("function.arguments").String()).Value(),
			},
		})
		return true
	})

	_, _, geminiReason := translator.MapFinishReason(translator.ProtocolOpenAI, choice.Get("finish_reason").String())

	resp := map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": geminiReason,
			"index":        0,
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     root.Get("usage.prompt_tokens").Int(),
			"candidatesTokenCount": root.Get("usage.completion_tokens").Int(),
			"totalTokenCount":      root.Get("usage.total_tokens").Int(),
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
