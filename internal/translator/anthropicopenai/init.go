package anthropicopenai

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolAnthropic, translator.ProtocolOpenAI,
		RequestToOpenAI,
		translator.ResponseTranslator{Stream: StreamToAnthropic, NonStream: NonStreamToAnthropic})
}
