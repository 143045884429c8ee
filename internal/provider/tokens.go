package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"script-studio/internal/model"
)

// TokenCounter оценивает число токенов текста для модели.
type TokenCounter func(modelName, text string) int

const fallbackEncoding = "cl100k_base"

var encodings sync.Map // modelName -> *tiktoken.Tiktoken (nil если словарь недоступен)

// CountTokens оценивает токены через tiktoken. Для неизвестных моделей берётся cl100k_base,
// а если словарь не загрузился - грубая оценка len/4.
func CountTokens(modelName, text string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(modelName); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

func encodingFor(modelName string) *tiktoken.Tiktoken {
	if cached, ok := encodings.Load(modelName); ok {
		enc, _ := cached.(*tiktoken.Tiktoken)
		return enc
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	encodings.Store(modelName, enc)
	return enc
}

// estimateUsage считает расход, когда провайдер его не сообщил.
func estimateUsage(count TokenCounter, modelName, prompt, completion string) model.Usage {
	p := count(modelName, prompt)
	c := count(modelName, completion)
	return model.Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c, Estimated: true}
}
