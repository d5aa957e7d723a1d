// Package tokenize splits source text and queries into lower-case search
// terms. Identifiers are broken at camelCase and snake_case boundaries so
// "parseHTTPRequest" yields "parse", "http" and "request".
package tokenize

import (
	"strings"
	"unicode"
)

// MinLength is the shortest term kept.
const MinLength = 2

var stopwords = wordSet(
	"a", "an", "and", "are", "as", "at", "be", "by", "for",
	"from", "has", "in", "is", "it", "its", "of", "on",
	"that", "the", "to", "was", "were", "will", "with", "this",
	"have", "had", "but", "not", "you", "your", "we", "our",
	"if", "or", "so", "no", "can", "do", "does", "did", "been",
	"would", "could", "should", "which", "what", "when", "where",
	"why", "how", "all", "each", "some", "than", "too", "very", "just", "also",
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Words returns the search terms of text in order of appearance.
func Words(text string) []string {
	var out []string
	for _, word := range splitWords(text) {
		for _, part := range splitIdentifier(word) {
			part = strings.ToLower(part)
			if len(part) < MinLength {
				continue
			}
			if _, stop := stopwords[part]; stop {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}

// Path returns the terms of a file path: directory names, base name and
// extension-less stem, each split like an identifier.
func Path(p string) []string {
	p = strings.NewReplacer("/", " ", "\\", " ", ".", " ", "-", " ").Replace(p)
	return Words(p)
}

// splitWords splits text on anything that cannot appear in an identifier.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// splitIdentifier breaks snake_case and camelCase. A run of capitals is kept
// together except for its last letter when a lower-case letter follows
// ("HTTPServer" -> "HTTP", "Server").
func splitIdentifier(word string) []string {
	var parts []string
	for _, piece := range strings.Split(word, "_") {
		runes := []rune(piece)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			boundary := unicode.IsLower(prev) && unicode.IsUpper(cur) ||
				unicode.IsLetter(prev) && unicode.IsDigit(cur) ||
				unicode.IsDigit(prev) && unicode.IsLetter(cur) ||
				unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if boundary {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		if start < len(runes) {
			parts = append(parts, string(runes[start:]))
		}
	}
	return parts
}
