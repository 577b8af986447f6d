package factcheck

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/feichai0017/factcheck-gateway/internal/models"
)

const (
	systemPrompt   = "Analyze inputs for facts/misinformation. Provide Verdict, Reason, and Estimated Truth Probability %."
	mediaOnlyInput = "(Analyze the provided document/image)"
)

var probabilityPattern = regexp.MustCompile(`(\d{1,3}) ?%`)

// BuildPrompt wraps the user's claim in the fact-check instructions.
func BuildPrompt(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return systemPrompt + "\n\n" + mediaOnlyInput
	}
	return systemPrompt + "\n\nUser Input: " + input
}

// NewIntent builds the provider-neutral request for a claim. media may be
// nil.
func NewIntent(input string, media *models.MediaRef, webSearch bool, kind models.ProviderKind, model string) models.Intent {
	return models.Intent{
		Prompt:    BuildPrompt(input),
		Media:     media,
		WebSearch: webSearch,
		Provider:  kind,
		Model:     strings.TrimSpace(model),
	}
}

// ExtractProbability returns the first percentage in a verdict.
func ExtractProbability(text string) (int, bool) {
	m := probabilityPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
