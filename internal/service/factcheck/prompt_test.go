package factcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/factcheck-gateway/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t,
		"Analyze inputs for facts/misinformation. Provide Verdict, Reason, and Estimated Truth Probability %.\n\nUser Input: The moon is made of cheese",
		BuildPrompt("  The moon is made of cheese "))
	assert.Equal(t,
		"Analyze inputs for facts/misinformation. Provide Verdict, Reason, and Estimated Truth Probability %.\n\n(Analyze the provided document/image)",
		BuildPrompt(""))
}

func TestNewIntent(t *testing.T) {
	intent := NewIntent("claim", nil, true, models.ProviderGroq, " mixtral-8x7b-32768 ")

	assert.Equal(t, models.ProviderGroq, intent.Provider)
	assert.Equal(t, "mixtral-8x7b-32768", intent.Model)
	assert.True(t, intent.WebSearch)
	assert.Nil(t, intent.Media)
}

func TestExtractProbability(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Estimated Truth Probability: 5%", 5, true},
		{"Probability 85 % likely", 85, true},
		{"first 10% then 90%", 10, true},
		{"no number here", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractProbability(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}
