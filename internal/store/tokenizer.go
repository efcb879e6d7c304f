package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric sequences, keeping hyphenated terms intact.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`)

// TokenizeText splits prose into lowercase tokens, splitting hyphenated
// terms into their parts as well as keeping the joined form.
// "cash-secured" yields ["cash-secured", "cash", "secured"].
func TokenizeText(text string) []string {
	var tokens []string

	for _, word := range tokenRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if len(lower) < 2 {
			continue
		}
		tokens = append(tokens, lower)
		if strings.Contains(lower, "-") {
			for _, part := range strings.Split(lower, "-") {
				if len(part) >= 2 {
					tokens = append(tokens, part)
				}
			}
		}
	}

	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a lookup map.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// DefaultStopWords contains common English function words that carry no
// retrieval signal.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"be", "been", "of", "to", "in", "on", "for", "with", "at", "by",
	"it", "its", "this", "that", "these", "those", "as", "from",
}
