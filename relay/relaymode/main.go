package relaymode

import "strings"

const (
	Unknown = iota
	ChatCompletions
	Embeddings
	ImagesGenerations
	// FileCompletions is the chat surface with a file_id grounding the answer.
	FileCompletions
	// RagCompletions is the chat surface grounded on a knowledge base.
	RagCompletions
)

func GetByPath(path string) int {
	switch {
	case strings.HasPrefix(path, "/v1/chat/completions"):
		return ChatCompletions
	case strings.HasPrefix(path, "/v1/embeddings"):
		return Embeddings
	case strings.HasSuffix(path, "embeddings"):
		return Embeddings
	case strings.HasPrefix(path, "/v1/images/generations"):
		return ImagesGenerations
	case strings.HasPrefix(path, "/v1/file/completions"):
		return FileCompletions
	case strings.HasPrefix(path, "/v1/rag/completions"):
		return RagCompletions
	}
	return Unknown
}

// IsChatLike reports whether the mode flows through the chat pipeline,
// including the file- and RAG-grounded variants.
func IsChatLike(mode int) bool {
	switch mode {
	case ChatCompletions, FileCompletions, RagCompletions:
		return true
	}
	return false
}
