package moderation

import (
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// DefaultWords is the built-in profanity dictionary.
var DefaultWords = []string{
	"arse", "arsehole", "ass", "asshole", "bastard", "bitch", "bollocks",
	"bullshit", "cock", "crap", "cunt", "damn", "dick", "dickhead", "fag",
	"fuck", "fucked", "fucker", "fucking", "goddamn", "jackass", "motherfucker",
	"piss", "prick", "pussy", "shit", "shitty", "slut", "twat", "wanker", "whore",
}

// Filter classifies text as profane when a dictionary word appears as a
// whole word. Matching ignores case and undoes common leet substitutions.
type Filter struct {
	matcher *goahocorasick.Machine
	empty   bool
}

func NewFilter(words []string) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		norm := normalize(strings.TrimSpace(word))
		if len(norm) == 0 || !isWord(norm) {
			continue
		}
		if _, dup := seen[string(norm)]; dup {
			continue
		}
		seen[string(norm)] = struct{}{}
		patterns = append(patterns, norm)
	}
	if len(patterns) == 0 {
		return &Filter{empty: true}, nil
	}
	sort.Slice(patterns, func(i, j int) bool { return string(patterns[i]) < string(patterns[j]) })

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m}, nil
}

// IsProfane reports whether text contains at least one dictionary word.
func (f *Filter) IsProfane(text string) bool {
	return len(f.Matches(text)) > 0
}

// Matches returns the dictionary words found in text, in order of appearance.
func (f *Filter) Matches(text string) []string {
	if f.empty || text == "" {
		return nil
	}
	norm := normalize(text)
	terms := f.matcher.MultiPatternSearch(norm, false)

	var found []string
	for _, term := range terms {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(norm) {
			continue
		}
		if start > 0 && isWordRune(norm[start-1]) {
			continue
		}
		if end < len(norm) && isWordRune(norm[end]) {
			continue
		}
		found = append(found, string(term.Word))
	}
	return found
}

// normalize keeps one rune per input rune so word boundaries survive.
func normalize(input string) []rune {
	runes := []rune(input)
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(simplifyRune(r))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWord(runes []rune) bool {
	for _, r := range runes {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}
