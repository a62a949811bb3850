package openai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/songquanpeng/llm-gateway/relay/model"
)

var (
	tokenEncoderMu      sync.Mutex
	tokenEncoderMap     = map[string]*tiktoken.Tiktoken{}
	defaultTokenEncoder *tiktoken.Tiktoken
)

// getTokenEncoder resolves the encoder for a model lazily, falling back to
// cl100k_base for models tiktoken does not know about.
func getTokenEncoder(modelName string) *tiktoken.Tiktoken {
	tokenEncoderMu.Lock()
	defer tokenEncoderMu.Unlock()

	if encoder, ok := tokenEncoderMap[modelName]; ok {
		return encoder
	}

	encoder, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		if defaultTokenEncoder == nil {
			defaultTokenEncoder, _ = tiktoken.GetEncoding("cl100k_base")
		}
		encoder = defaultTokenEncoder
	}
	tokenEncoderMap[modelName] = encoder
	return encoder
}

func getTokenNum(encoder *tiktoken.Tiktoken, text string) int {
	if encoder == nil {
		// Rough byte-based estimate when no encoder could be loaded at all.
		return len(text) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}

// CountTokenText counts the tokens of plain text under the given model's
// encoding.
func CountTokenText(text string, modelName string) int {
	if text == "" {
		return 0
	}
	return getTokenNum(getTokenEncoder(modelName), text)
}

// CountTokenMessages approximates the prompt size of a chat request. Per-message
// framing overhead follows the OpenAI cookbook numbers for chat models.
func CountTokenMessages(messages []model.Message, modelName string) int {
	encoder := getTokenEncoder(modelName)

	const tokensPerMessage = 3
	tokenNum := 3 // reply is primed with <|start|>assistant<|message|>
	for _, message := range messages {
		tokenNum += tokensPerMessage
		tokenNum += getTokenNum(encoder, message.Role)
		tokenNum += getTokenNum(encoder, message.StringContent())
		if message.Name != nil {
			tokenNum += 1 + getTokenNum(encoder, *message.Name)
		}
	}
	return tokenNum
}
