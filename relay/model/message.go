package model

import "encoding/json"

// Message is one chat message, inbound or in a response choice/delta.
type Message struct {
	Role string `json:"role,omitempty"`
	// Content is string for plain messages; arrays of content parts pass
	// through untouched.
	Content any `json:"content,omitempty"`
	// ReasoningContent carries chain-of-thought text from reasoning models.
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Name             *string         `json:"name,omitempty"`
	ToolCalls        json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallId       string          `json:"tool_call_id,omitempty"`
}

// StringContent returns the message content when it is plain text, otherwise
// the concatenation of its text parts.
func (m Message) StringContent() string {
	switch content := m.Content.(type) {
	case string:
		return content
	case []any:
		var text string
		for _, part := range content {
			partMap, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if partMap["type"] == "text" {
				if s, ok := partMap["text"].(string); ok {
					text += s
				}
			}
		}
		return text
	}
	return ""
}

// IsStringContent reports whether the content is a plain string.
func (m Message) IsStringContent() bool {
	_, ok := m.Content.(string)
	return ok
}
