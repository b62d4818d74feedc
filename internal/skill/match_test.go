package skill

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase conversion",
			input:    "Binary SEARCH Tree",
			expected: "binary search tree",
		},
		{
			name:     "extra whitespace",
			input:    "system   design    question",
			expected: "system design question",
		},
		{
			name:     "newlines as whitespace",
			input:    "dynamic\nprogramming\nproblem",
			expected: "dynamic programming problem",
		},
		{
			name:     "zero-width characters stripped",
			input:    "key​word",
			expected: "keyword",
		},
		{
			name:     "compatibility forms folded",
			input:    "ＡＢＣ ﬁle",
			expected: "abc file",
		},
		{
			name:     "leading and trailing space trimmed",
			input:    "  hash map  ",
			expected: "hash map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			if result != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestMatcherContains(t *testing.T) {
	matcher := NewMatcher(DefaultMatchThreshold)

	tests := []struct {
		name      string
		text      string
		keyword   string
		wantMatch bool
	}{
		{
			name:      "exact substring",
			text:      "can you walk me through binary search on this",
			keyword:   "binary search",
			wantMatch: true,
		},
		{
			name:      "single typo",
			text:      "lets talk about binary serch trees",
			keyword:   "binary search",
			wantMatch: true,
		},
		{
			name:      "typo in short keyword",
			text:      "whats the best algoritm here",
			keyword:   "algorithm",
			wantMatch: true,
		},
		{
			name:      "case and spacing differences",
			text:      "Dynamic   Programming feels hard",
			keyword:   "dynamic programming",
			wantMatch: true,
		},
		{
			name:      "no match",
			text:      "the weather is nice today",
			keyword:   "dynamic programming",
			wantMatch: false,
		},
		{
			name:      "empty keyword never matches",
			text:      "anything at all",
			keyword:   "",
			wantMatch: false,
		},
		{
			name:      "empty text never matches",
			text:      "",
			keyword:   "binary search",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matcher.Contains(tt.text, tt.keyword)
			if got != tt.wantMatch {
				t.Errorf("Contains(%q, %q) = %v, want %v", tt.text, tt.keyword, got, tt.wantMatch)
			}
		})
	}
}

func TestMatchesAny(t *testing.T) {
	matcher := NewMatcher(DefaultMatchThreshold)
	keywords := []string{"load balancer", "sharding", "message queue"}

	tests := []struct {
		name      string
		text      string
		wantMatch bool
	}{
		{
			name:      "one keyword present",
			text:      "how would you add a load balancer here",
			wantMatch: true,
		},
		{
			name:      "keyword with typo",
			text:      "would shardng help at this scale",
			wantMatch: true,
		},
		{
			name:      "none present",
			text:      "tell me about your weekend",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matcher.MatchesAny(tt.text, keywords)
			if got != tt.wantMatch {
				t.Errorf("MatchesAny(%q) = %v, want %v", tt.text, got, tt.wantMatch)
			}
		})
	}
}

func TestNewMatcherThresholdFallback(t *testing.T) {
	for _, threshold := range []float64{0, -1, 1.5} {
		m := NewMatcher(threshold)
		if m.threshold != DefaultMatchThreshold {
			t.Errorf("NewMatcher(%v) threshold = %v, want default", threshold, m.threshold)
		}
	}
}
