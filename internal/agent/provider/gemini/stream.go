package gemini

import (
	"github.com/tidwall/gjson"
)

// textPath is where each streamed generateContentResponse carries its text.
const textPath = "candidates.0.content.parts.0.text"

// extractText is the chunk extractor for Gemini event streams. Chunks with
// no text at the path (usage-only tails, safety blocks) count as skipped.
func extractText(payload []byte) (string, bool) {
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	result := gjson.GetBytes(payload, textPath)
	if result.Type != gjson.String {
		return "", false
	}
	return result.Str, true
}
