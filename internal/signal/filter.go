package signal

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

// maxContextLen bounds a passage's paragraph context. A paragraph that runs
// past this without a blank-line boundary cannot be resolved to a sane
// context window (typically truncated or badly extracted source text) and is
// dropped with a warning rather than emitted.
const maxContextLen = 4000

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Filter scans document text for configured phrase patterns and emits
// candidate passages. It holds only pre-compiled patterns, so a single
// Filter is safe for concurrent use and re-running it on the same input
// yields identical output.
type Filter struct {
	catA     []*phrasePattern
	catB     []*phrasePattern
	catC     []*phrasePattern
	negative []*phrasePattern
	minLen   int
	verbose  bool
}

type phrasePattern struct {
	phrase string
	re     *regexp.Regexp
}

// compilePhrases builds case-insensitive, word-boundary-aware patterns.
func compilePhrases(phrases []string) []*phrasePattern {
	patterns := make([]*phrasePattern, 0, len(phrases))
	for _, p := range phrases {
		if p == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		patterns = append(patterns, &phrasePattern{phrase: p, re: re})
	}
	return patterns
}

// NewFilter creates a filter from a phrase configuration.
func NewFilter(phrases *PhraseConfig, cfg model.SignalConfig) *Filter {
	if phrases == nil {
		phrases = DefaultPhraseConfig()
	}
	minLen := cfg.MinParagraphLen
	if minLen <= 0 {
		minLen = 50
	}
	return &Filter{
		catA:     compilePhrases(phrases.CategoryA),
		catB:     compilePhrases(phrases.CategoryB),
		catC:     compilePhrases(phrases.CategoryC),
		negative: compilePhrases(phrases.NegativeFilters),
		minLen:   minLen,
	}
}

// SetVerbose enables dropped-passage warnings on stderr.
func (f *Filter) SetVerbose(v bool) { f.verbose = v }

// Filter scans text and returns passages in position-in-source order.
func (f *Filter) Filter(sourceID, section, text string) []model.Passage {
	var passages []model.Passage

	for _, para := range splitParagraphs(text) {
		if len(para.text) < f.minLen {
			continue
		}
		if len(para.text) > maxContextLen {
			if f.verbose {
				fmt.Fprintf(os.Stderr, "Warning: %s: dropping passage at offset %d, context window unresolved (%d chars)\n",
					sourceID, para.start, len(para.text))
			}
			continue
		}

		category, matched := f.classify(para.text)
		if category == "" {
			continue
		}

		passages = append(passages, model.Passage{
			SourceID:       sourceID,
			Category:       category,
			MatchedPhrases: matched,
			Context:        para.text,
			Section:        section,
			Start:          para.start,
			End:            para.end,
		})
	}

	return passages
}

// FilterSource scans every section of a source (or the full text when the
// source has no sections) and returns all passages.
func (f *Filter) FilterSource(src model.Source) []model.Passage {
	if len(src.Sections) > 0 {
		names := make([]string, 0, len(src.Sections))
		for name := range src.Sections {
			names = append(names, name)
		}
		sort.Strings(names)

		var passages []model.Passage
		for _, name := range names {
			passages = append(passages, f.Filter(src.SourceID, name, src.Sections[name])...)
		}
		return passages
	}
	return f.Filter(src.SourceID, "full_text", src.FullText)
}

// classify returns the highest tier matched by a paragraph along with every
// matched phrase across all tiers, or ("", nil) when nothing matched or a
// negative filter vetoed it. Negative filters always win.
func (f *Filter) classify(paragraph string) (model.SignalCategory, []string) {
	for _, pat := range f.negative {
		if pat.re.MatchString(paragraph) {
			return "", nil
		}
	}

	var matched []string
	category := model.SignalCategory("")

	for _, tier := range []struct {
		cat      model.SignalCategory
		patterns []*phrasePattern
	}{
		{model.CategoryA, f.catA},
		{model.CategoryB, f.catB},
		{model.CategoryC, f.catC},
	} {
		for _, pat := range tier.patterns {
			if pat.re.MatchString(paragraph) {
				matched = append(matched, pat.phrase)
				if category == "" || tier.cat.Rank() > category.Rank() {
					category = tier.cat
				}
			}
		}
	}

	return category, matched
}

type paragraph struct {
	text  string
	start int
	end   int
}

// splitParagraphs splits text on blank lines, keeping byte offsets of each
// trimmed paragraph in the original text.
func splitParagraphs(text string) []paragraph {
	var paras []paragraph

	pos := 0
	seps := paragraphSep.FindAllStringIndex(text, -1)
	bounds := make([][2]int, 0, len(seps)+1)
	for _, sep := range seps {
		bounds = append(bounds, [2]int{pos, sep[0]})
		pos = sep[1]
	}
	bounds = append(bounds, [2]int{pos, len(text)})

	for _, b := range bounds {
		start, end := b[0], b[1]
		// Trim whitespace while keeping offsets accurate.
		for start < end && isSpace(text[start]) {
			start++
		}
		for end > start && isSpace(text[end-1]) {
			end--
		}
		if start >= end {
			continue
		}
		paras = append(paras, paragraph{text: text[start:end], start: start, end: end})
	}

	return paras
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
