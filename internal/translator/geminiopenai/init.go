package geminiopenai

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolGemini, translator.ProtocolOpenAI,
		RequestToOpenAI,
		translator.ResponseTranslator{Stream: StreamToGemini, NonStream: NonStreamToGemini})
}
