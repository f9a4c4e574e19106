package openaigemini

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolOpenAI, translator.ProtocolGemini,
		RequestToGemini,
		translator.ResponseTranslator{Stream: StreamToOpenAI, NonStream: NonStreamToOpenAI})
}
