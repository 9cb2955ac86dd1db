// Package moderation masks forbidden words in chat messages before they are
// fanned out. Matching ignores case, punctuation and common leet substitutions.
package moderation

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	log         *slog.Logger
	matcher     *goahocorasick.Machine
	replacement rune
}

var _ contract.Censor = (*Moderator)(nil)

// mapping links every normalized rune to its position in the original text.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton over the normalized dictionary.
// Entries made only of noise are skipped.
func NewModerator(words []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if pattern := normalizeRunes([]rune(word)); len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderation dictionary built", "patterns", len(patterns))
	return &Moderator{log: log, matcher: m, replacement: replacement}, nil
}

// Censor returns text with every forbidden word replaced, spacing preserved.
func (m *Moderator) Censor(text string) string {
	censored, words := m.Inspect(text)
	if len(words) > 0 {
		m.log.Debug("Message censored", "matches", len(words))
	}
	return censored
}

// Inspect censors text and reports the dictionary words found, in text order.
func (m *Moderator) Inspect(text string) (string, []string) {
	mp := normalize(text)
	if len(mp.normalized) == 0 {
		return text, nil
	}
	terms := m.matcher.MultiPatternSearch(mp.normalized, false)
	if len(terms) == 0 {
		return text, nil
	}

	runes := []rune(text)
	var words []string
	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(mp.origIdx) {
			continue
		}
		for i := mp.origIdx[start]; i <= mp.origIdx[end-1]; i++ {
			runes[i] = m.replacement
		}
		words = append(words, string(term.Word))
	}
	return string(runes), words
}

func normalize(input string) mapping {
	runes := []rune(input)
	mp := mapping{
		normalized: make([]rune, 0, len(runes)),
		origIdx:    make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mp.normalized = append(mp.normalized, unicode.ToLower(clean))
		mp.origIdx = append(mp.origIdx, i)
	}
	return mp
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
