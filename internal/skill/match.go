package skill

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// DefaultMatchThreshold is the minimum similarity for a fuzzy keyword hit
const DefaultMatchThreshold = 0.8

// Matcher checks whether user input references a skill's keyword
// vocabulary, tolerating typos and spacing variations via sliding-window
// Levenshtein similarity.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given similarity threshold (0-1).
// Out-of-range thresholds fall back to the default.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return &Matcher{threshold: threshold}
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize prepares text for matching: Unicode NFKC, lowercase,
// whitespace collapse, invisible character removal
func Normalize(input string) string {
	result := norm.NFKC.String(input)
	result = strings.ToLower(result)
	result = whitespaceRegex.ReplaceAllString(result, " ")
	result = removeInvisibleChars(result)
	return strings.TrimSpace(result)
}

// removeInvisibleChars removes zero-width and invisible Unicode characters
func removeInvisibleChars(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if !unicode.IsControl(r) || r == ' ' || r == '\t' || r == '\n' {
			switch r {
			case '​', '‌', '‍', '‎', '‏',
				'⁠', '⁡', '⁢', '⁣', '⁤',
				'﻿':
				continue
			default:
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}

// levenshteinSimilarity calculates similarity as 1 - (distance / maxLen)
func levenshteinSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// Contains reports whether the keyword appears in the text, exactly or
// within edit distance
func (m *Matcher) Contains(text, keyword string) bool {
	return m.containsNormalized(Normalize(text), Normalize(keyword))
}

// MatchesAny reports whether any of the keywords appears in the text
func (m *Matcher) MatchesAny(text string, keywords []string) bool {
	normText := Normalize(text)
	for _, kw := range keywords {
		if m.containsNormalized(normText, Normalize(kw)) {
			return true
		}
	}
	return false
}

func (m *Matcher) containsNormalized(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	if strings.Contains(text, keyword) {
		return true
	}
	ok, _ := m.fuzzyContainsWindow(text, keyword)
	return ok
}

// fuzzyContainsWindow checks if the pattern appears in text using sliding
// window Levenshtein. Window sizes span pattern length ± 20%.
func (m *Matcher) fuzzyContainsWindow(text, pattern string) (bool, float64) {
	textLen := len(text)
	patternLen := len(pattern)

	if patternLen == 0 {
		return false, 0
	}

	// Text shorter than pattern: compare directly
	if textLen < patternLen {
		sim := levenshteinSimilarity(text, pattern)
		return sim >= m.threshold, sim
	}

	bestSimilarity := 0.0

	minWindowSize := int(float64(patternLen) * 0.8)
	if minWindowSize < 1 {
		minWindowSize = 1
	}
	maxWindowSize := int(float64(patternLen) * 1.2)
	if maxWindowSize > textLen {
		maxWindowSize = textLen
	}

	for windowSize := minWindowSize; windowSize <= maxWindowSize; windowSize++ {
		for i := 0; i <= textLen-windowSize; i++ {
			window := text[i : i+windowSize]
			sim := levenshteinSimilarity(pattern, window)

			if sim > bestSimilarity {
				bestSimilarity = sim
			}

			// Early exit on a near-perfect match
			if sim >= 0.95 {
				return true, sim
			}
		}
	}

	return bestSimilarity >= m.threshold, bestSimilarity
}
