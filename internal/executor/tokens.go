package executor

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func sharedCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens approximates the token count of text using a cl100k_base
// tokenizer, degrading to a word-count heuristic when the codec cannot be
// loaded or encoding fails. The inference path does not call it: usage
// records carry only the token counts the upstream response reports.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	c, err := sharedCodec()
	if err != nil {
		return len(strings.Fields(text))
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(ids)
}
