package catalog

import (
	"strings"
	"unicode"
)

var contractionReplacer = strings.NewReplacer(
	"’", "'",
	"won't", "will not",
	"can't", "can not",
	"n't", " not",
)

// tokenize lower-cases, expands negative contractions and splits on anything
// that is not a letter or digit.
func tokenize(s string) []string {
	s = contractionReplacer.Replace(strings.ToLower(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a contiguous token run in tokens.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
