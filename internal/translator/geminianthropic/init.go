package geminianthropic

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolGemini, translator.ProtocolAnthropic,
		RequestToAnthropic,
		translator.ResponseTranslator{Stream: StreamToGemini, NonStream: NonStreamToGemini})
}
