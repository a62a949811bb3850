package model

import "encoding/json"

// StreamOptions mirrors the OpenAI stream_options object. IncludeUsage is
// typed loosely because some upstreams expect the string "True" rather than a
// JSON boolean.
type StreamOptions struct {
	IncludeUsage any `json:"include_usage,omitempty"`
}

// GeneralOpenAIRequest is the subset of the OpenAI chat/embedding/image
// request surface this gateway inspects. Unknown fields survive untouched
// because the outbound body is rewritten from the raw bytes, not from this
// struct.
type GeneralOpenAIRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	N                *int            `json:"n,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	StreamOptions    *StreamOptions  `json:"stream_options,omitempty"`
	Stop             any             `json:"stop,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	LogitBias        any             `json:"logit_bias,omitempty"`
	User             string          `json:"user,omitempty"`
	FileId           string          `json:"file_id,omitempty"`
	Input            any             `json:"input,omitempty"`
	EncodingFormat   string          `json:"encoding_format,omitempty"`
	Prompt           any             `json:"prompt,omitempty"`
	Size             string          `json:"size,omitempty"`
	ResponseFormat   json.RawMessage `json:"response_format,omitempty"`
}

// ParseInput normalizes the embeddings input field to a string slice.
func (r GeneralOpenAIRequest) ParseInput() []string {
	if r.Input == nil {
		return nil
	}
	var input []string
	switch v := r.Input.(type) {
	case string:
		input = []string{v}
	case []any:
		input = make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				input = append(input, str)
			}
		}
	}
	return input
}
