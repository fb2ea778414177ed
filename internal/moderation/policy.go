// Package moderation screens new posts before they reach the feed and
// decides when community reports hide an item.
package moderation

import (
	"fmt"
	"slices"
	"strings"
)

// FragmentRule rejects text in which every fragment appears somewhere.
type FragmentRule struct {
	All   []string `yaml:"all"`
	Label string   `yaml:"label"`
}

// Policy holds the word lists and photo thresholds.
type Policy struct {
	// BannedWords are matched against whole normalized tokens.
	BannedWords []string `yaml:"banned_words"`
	// SevereSubstrings are matched anywhere in the normalized text.
	SevereSubstrings []string       `yaml:"severe_substrings"`
	Fragments        []FragmentRule `yaml:"fragments"`

	RejectThreshold float64  `yaml:"reject_threshold"`
	ReviewThreshold float64  `yaml:"review_threshold"`
	UnsafeLabels    []string `yaml:"unsafe_labels"`

	banned map[string]bool
}

// DefaultPolicy returns the built-in English and Hinglish lists.
func DefaultPolicy() Policy {
	return Policy{
		BannedWords: []string{
			"fuck", "shit", "bitch", "asshole", "dick", "pussy", "bastard", "whore", "slut", "nigger", "faggot",
			"retard", "cunt", "kill", "suicide", "murder", "rape",
			"chutiya", "madarchod", "bhenchod", "bhosdike", "gandu", "lauda", "loda", "tatte",
			"randi", "saala", "kutti", "kutta", "harami", "tharki", "chinaal", "bhadwa",
		},
		SevereSubstrings: []string{"madarchod", "bhenchod", "chutiya", "bhosdike", "nigger", "faggot"},
		Fragments: []FragmentRule{
			{All: []string{"bhen", "chod"}, Label: "bhenchod"},
			{All: []string{"bhen", "chd"}, Label: "bhenchod"},
		},
		RejectThreshold: 0.85,
		ReviewThreshold: 0.50,
		UnsafeLabels:    []string{"Porn", "Hentai", "Sexy"},
	}
}

// Validate checks the thresholds and compiles the word set.
func (p *Policy) Validate() error {
	if p.ReviewThreshold < 0 || p.RejectThreshold > 1 || p.ReviewThreshold > p.RejectThreshold {
		return fmt.Errorf("invalid photo thresholds: review %.2f, reject %.2f", p.ReviewThreshold, p.RejectThreshold)
	}
	for _, f := range p.Fragments {
		if len(f.All) == 0 || f.Label == "" {
			return fmt.Errorf("fragment rule needs fragments and a label: %+v", f)
		}
	}
	p.compile()
	return nil
}

func (p *Policy) compile() {
	p.banned = make(map[string]bool, len(p.BannedWords))
	for _, w := range p.BannedWords {
		p.banned[strings.ToLower(w)] = true
	}
}

func (p *Policy) isBanned(word string) bool {
	if p.banned == nil {
		return slices.ContainsFunc(p.BannedWords, func(w string) bool {
			return strings.EqualFold(w, word)
		})
	}
	return p.banned[word]
}
