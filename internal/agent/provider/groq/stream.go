package groq

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// extractDelta is the chunk extractor for chat completion streams. A chunk
// without choices is malformed; an empty delta (role header, finish
// marker) is valid but carries nothing.
func extractDelta(payload []byte) (string, bool) {
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}
