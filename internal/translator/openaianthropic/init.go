package openaianthropic

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolOpenAI, translator.ProtocolAnthropic,
		RequestToAnthropic,
		translator.ResponseTranslator{Stream: StreamToOpenAI, NonStream: NonStreamToOpenAI})
}
