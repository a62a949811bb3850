package openai

import (
	"encoding/json"

	"github.com/songquanpeng/llm-gateway/relay/model"
)

// TextResponseChoice is one completion choice of a non-stream response.
type TextResponseChoice struct {
	Index        int             `json:"index"`
	Message      model.Message   `json:"message"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
	FinishReason string          `json:"finish_reason"`
	StopReason   *string         `json:"stop_reason,omitempty"`
}

// TextResponse is the canonical non-stream completions body.
type TextResponse struct {
	Id      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []TextResponseChoice `json:"choices"`
	Usage   model.Usage          `json:"usage"`
}

// ChatCompletionsStreamResponseChoice is one choice inside a stream chunk.
// FinishReason is a pointer so a null reason survives re-encoding.
type ChatCompletionsStreamResponseChoice struct {
	Index        int             `json:"index"`
	Delta        model.Message   `json:"delta"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
	FinishReason *string         `json:"finish_reason"`
}

// ChatCompletionsStreamResponse is one SSE chunk body.
type ChatCompletionsStreamResponse struct {
	Id      string                                `json:"id"`
	Object  string                                `json:"object"`
	Created int64                                 `json:"created"`
	Model   string                                `json:"model"`
	Choices []ChatCompletionsStreamResponseChoice `json:"choices"`
	Usage   *model.Usage                          `json:"usage,omitempty"`
}

// EmbeddingResponse mirrors the OpenAI embeddings body closely enough to
// rewrite the model field and extract usage.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
	Model  string          `json:"model"`
	Usage  model.Usage     `json:"usage"`
}

// ErrorResponse is the error envelope OpenAI-compatible APIs return.
type ErrorResponse struct {
	Error model.Error `json:"error"`
}
