// Package textsearch implements literal and whole-word search over a
// document's extracted text.
package textsearch

import (
	"unicode"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
)

// MaxMatches caps how many matches are returned to callers; the total
// occurrence count is still reported in full.
const MaxMatches = 50

// contextRadius is how many runes of surrounding text each match
// carries on either side.
const contextRadius = 100

type Options struct {
	CaseSensitive bool
	WholeWords    bool
}

// Find scans text for literal occurrences of query. Positions and line
// numbers refer to the original text; case-insensitive matching folds
// both sides. Overlapping occurrences each count. Returns the capped
// match list and the true total.
func Find(text, query string, opts Options) ([]models.Match, int) {
	if query == "" {
		return nil, 0
	}

	runes := []rune(text)
	needle := []rune(query)
	if len(needle) > len(runes) {
		return nil, 0
	}

	haystack := runes
	if !opts.CaseSensitive {
		haystack = foldRunes(runes)
		needle = foldRunes(needle)
	}

	var matches []models.Match
	total := 0
	newlines := 0

	for pos := 0; pos+len(needle) <= len(haystack); pos++ {
		if pos > 0 && runes[pos-1] == '\n' {
			newlines++
		}

		if !matchAt(haystack, needle, pos) {
			continue
		}
		if opts.WholeWords && !isWholeWord(runes, pos, pos+len(needle)) {
			continue
		}

		total++
		if len(matches) < MaxMatches {
			matches = append(matches, models.Match{
				Position:   pos,
				Context:    contextWindow(runes, pos, len(needle)),
				LineNumber: newlines + 1,
			})
		}
	}

	return matches, total
}

func matchAt(haystack, needle []rune, pos int) bool {
	for i, r := range needle {
		if haystack[pos+i] != r {
			return false
		}
	}
	return true
}

// isWholeWord anchors the match on non-word-character boundaries.
func isWholeWord(runes []rune, start, end int) bool {
	if start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if end < len(runes) && isWordRune(runes[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// contextWindow clips [pos-contextRadius, pos+length+contextRadius) to
// the text bounds.
func contextWindow(runes []rune, pos, length int) string {
	start := pos - contextRadius
	if start < 0 {
		start = 0
	}
	end := pos + length + contextRadius
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

func foldRunes(runes []rune) []rune {
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}
