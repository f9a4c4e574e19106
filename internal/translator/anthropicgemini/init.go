package anthropicgemini

import "github.com/cliproxy-gateway/gateway/internal/translator"

func init() {
	translator.Register(translator.ProtocolAnthropic, translator.ProtocolGemini,
		RequestToGemini,
		translator.ResponseTranslator{Stream: StreamToAnthropic, NonStream: NonStreamToAnthropic})
}
