package moderation

import (
	"strings"
	"unicode"
)

var leet = strings.NewReplacer("0", "o", "1", "i", "@", "a", "$", "s")

const punctuation = ".,/#!$%^&*;:{}=-_`~()"

// Normalize lowercases text, undoes common leetspeak and strips masking
// characters and punctuation.
func Normalize(text string) string {
	s := leet.Replace(strings.ToLower(text))
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
}

// Offending returns the first term that makes text unacceptable, or "" if
// the text is clean.
func (p *Policy) Offending(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	cleaned := Normalize(text)

	for _, word := range strings.FieldsFunc(cleaned, unicode.IsSpace) {
		if p.isBanned(word) {
			return word
		}
	}

	for _, f := range p.Fragments {
		if containsAll(cleaned, f.All) {
			return f.Label + " (detected)"
		}
	}

	for _, s := range p.SevereSubstrings {
		if strings.Contains(cleaned, s) {
			return s
		}
	}
	return ""
}

// Mask replaces banned words in text with asterisks. Words are compared
// case-insensitively without normalization, so the text reads as typed.
func (p *Policy) Mask(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if p.isBanned(strings.ToLower(w)) {
			words[i] = strings.Repeat("*", len([]rune(w)))
		}
	}
	return strings.Join(words, " ")
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
