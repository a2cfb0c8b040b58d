package dedup

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalizer canonicalizes a statement for exact-match hashing. The key it
// produces is never shown to users; it only feeds dedup bucketing.
type Normalizer struct {
	stopPhrases []string
}

// NewNormalizer creates a normalizer with the given leading stop-phrases.
// Phrases are compared after case folding, so any casing works.
func NewNormalizer(stopPhrases []string) *Normalizer {
	lowered := make([]string, 0, len(stopPhrases))
	for _, p := range stopPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Normalizer{stopPhrases: lowered}
}

// Normalize folds case, collapses whitespace runs, strips edge punctuation
// and strips leading stop-phrases. It is pure and idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(statement string) string {
	s := strings.ToLower(statement)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for {
		trimmed := strings.Trim(s, ".,;:!?\"'()[]- ")
		stripped := n.stripStopPrefix(trimmed)
		if stripped == s {
			return s
		}
		s = stripped
	}
}

func (n *Normalizer) stripStopPrefix(s string) string {
	for _, phrase := range n.stopPhrases {
		if !strings.HasPrefix(s, phrase) {
			continue
		}
		// The phrase must end on a word boundary: "the question of" may not
		// eat the head of "the question offshore drilling poses".
		rest := s[len(phrase):]
		if !strings.HasPrefix(rest, " ") {
			continue
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return s
}
