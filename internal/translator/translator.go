// Package translator implements the Translator Matrix (spec §4.6): a pure
// function of client protocol and target protocol, registered per directed
// pair the way the teacher's translator registry works, and operating
// directly on raw JSON via gjson/sjson rather than marshal/unmarshal
// through intermediate structs.
package translator

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Protocol identifies one of the three wire protocols recognized by path
// (spec §4.6).
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
	ProtocolGemini    Protocol = "gemini"
)

// RequestFunc converts a raw request body from one protocol's shape to
// another's.
type RequestFunc func(modelName string, rawJSON []byte, stream bool) []byte

// StreamFunc converts one upstream SSE/JSON-line chunk into zero or more
// client-protocol chunks. state carries per-connection accumulator state
// across calls (content-block indices, buffered tool-call JSON, etc).
type StreamFunc func(ctx context.Context, modelName string, rawJSON []byte, state *StreamState) []string

// NonStreamFunc converts a complete upstream response body into the client
// protocol's complete-response shape.
type NonStreamFunc func(ctx context.Context, modelName string, rawJSON []byte) string

// ResponseTranslator bundles the streaming and non-streaming response
// translators for one directed protocol pair.
type ResponseTranslator struct {
	Stream    StreamFunc
	NonStream NonStreamFunc
}

var (
	requests  = make(map[Protocol]map[Protocol]RequestFunc)
	responses = make(map[Protocol]map[Protocol]ResponseTranslator)
)

// Register wires the request and response translators for one directed
// (from, to) protocol pair.
func Register(from, to Protocol, request RequestFunc, response ResponseTranslator) {
	log.Debugf("registering translator %s -> %s", from, to)
	if requests[from] == nil {
		requests[from] = make(map[Protocol]RequestFunc)
	}
	requests[from][to] = request

	if responses[from] == nil {
		responses[from] = make(map[Protocol]ResponseTranslator)
	}
	responses[from][to] = response
}

// Request translates a request body from -> to. Identity when from == to or
// no translator is registered (the Executor then passes the body through
// unmodified, per spec §4.6's "pure function" contract degrading to
// identity outside the recognized matrix).
func Request(from, to Protocol, modelName string, rawJSON []byte, stream bool) []byte {
	if from == to {
		return rawJSON
	}
	if fn, ok := requests[from][to]; ok {
		return fn(modelName, rawJSON, stream)
	}
	return rawJSON
}

// NeedConvert reports whether a response translator is registered for the
// directed pair.
func NeedConvert(from, to Protocol) bool {
	if from == to {
		return false
	}
	_, ok := responses[from][to]
	return ok
}

// Response translates one streamed upstream chunk into client-protocol
// chunks.
func Response(from, to Protocol, ctx context.Context, modelName string, rawJSON []byte, state *StreamState) []string {
	if from == to {
		return []string{string(rawJSON)}
	}
	if t, ok := responses[from][to]; ok {
		return t.Stream(ctx, modelName, rawJSON, state)
	}
	return []string{string(rawJSON)}
}

// ResponseNonStream translates a complete upstream response body.
func ResponseNonStream(from, to Protocol, ctx context.Context, modelName string, rawJSON []byte) string {
	if from == to {
		return string(rawJSON)
	}
	if t, ok := responses[from][to]; ok {
		return t.NonStream(ctx, modelName, rawJSON)
	}
	return string(rawJSON)
}

// StreamState accumulates the per-connection bookkeeping a streaming
// translator needs across chunks: the active content-block index, whether
// the terminal event has already been emitted, and buffered tool-call JSON
// fragments keyed by index (OpenAI deltas arrive as JSON string fragments
// that must be concatenated before they can be forwarded as one
// input_json_delta/functionCall argument).
type StreamState struct {
	MessageStarted  bool
	ContentIndex    int
	TerminalEmitted bool
	ToolCallBuffer  map[int]string
	AnthropicMsgID  string
}

// NewStreamState returns a fresh accumulator for one client connection.
func NewStreamState() *StreamState {
	return &StreamState{ToolCallBuffer: make(map[int]string)}
}

// MapFinishReason translates a finish/stop reason across protocols per
// spec §4.6: stop<->end_turn<->STOP, length<->max_tokens<->MAX_TOKENS,
// tool_use<->tool_use<->TOOL_USE.
func MapFinishReason(from Protocol, reason string) (openai, anthropic, gemini string) {
	type triple struct{ openai, anthropic, gemini string }
	table := []triple{
		{"stop", "end_turn", "STOP"},
		{"length", "max_tokens", "MAX_TOKENS"},
		{"tool_calls", "tool_use", "TOOL_USE"},
	}
	for _, t := range table {
		switch from {
		case ProtocolOpenAI:
			if t.openai == reason {
				return t.openai, t.anthropic, t.gemini
			}
		case ProtocolAnthropic:
			if t.anthropic == reason {
				return t.openai, t.anthropic, t.gemini
			}
		case ProtocolGemini:
			if t.gemini == reason {
				return t.openai, t.anthropic, t.gemini
			}
		}
	}
	return reason, reason, reason
}
