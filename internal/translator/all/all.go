// Package all wires every directional translator pair into the Translator
// Matrix via blank import side effects. Importing this package (from
// cmd/server/main.go) is what populates translator.Register's tables.
package all

import (
	_ "github.com/cliproxy-gateway/gateway/internal/translator/anthropicgemini"
	_ "github.com/cliproxy-gateway/gateway/internal/translator/anthropicopenai"
	_ "github.com/cliproxy-gateway/gateway/internal/translator/geminianthropic"
	_ "github.com/cliproxy-gateway/gateway/internal/translator/geminiopenai"
	_ "github.com/cliproxy-gateway/gateway/internal/translator/openaianthropic"
	_ "github.com/cliproxy-gateway/gateway/internal/translator/openaigemini"
)
