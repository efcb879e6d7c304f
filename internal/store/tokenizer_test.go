package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "Covered Calls, explained.",
			want: []string{"covered", "calls", "explained"},
		},
		{
			name: "hyphenated term keeps joined form and parts",
			text: "cash-secured put",
			want: []string{"cash-secured", "cash", "secured", "put"},
		},
		{
			name: "single characters dropped",
			text: "a B strategy",
			want: []string{"strategy"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeText(tt.text))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stops := BuildStopWordMap(DefaultStopWords)

	got := FilterStopWords([]string{"the", "covered", "call", "is", "income"}, stops)

	assert.Equal(t, []string{"covered", "call", "income"}, got)
}
