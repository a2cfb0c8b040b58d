package pipeline

import (
	"strings"

	"github.com/mkrasilnikov/gapminer/internal/dedup"
	"github.com/mkrasilnikov/gapminer/internal/model"
)

// buildProvenance matches a problem's supporting quote to the best signal
// passage from its source. A substring hit wins outright; otherwise the most
// lexically similar context is used, and below 0.3 similarity only the quote
// itself is kept.
func buildProvenance(originalText string, passages []model.Passage) *model.Provenance {
	if originalText == "" || len(passages) == 0 {
		return nil
	}

	probe := originalText
	if len(probe) > 80 {
		probe = probe[:80]
	}
	probe = strings.ToLower(probe)

	var best *model.Passage
	bestScore := 0.0
	sim := dedup.LexicalCosine{}

	for i := range passages {
		context := passages[i].Context
		if context == "" {
			continue
		}
		if strings.Contains(strings.ToLower(context), probe) {
			best = &passages[i]
			bestScore = 1.0
			break
		}
		score := sim.Score(head(originalText, 200), head(context, 200))
		if score > bestScore {
			bestScore = score
			best = &passages[i]
		}
	}

	if best == nil || bestScore < 0.3 {
		return &model.Provenance{OriginalText: originalText}
	}
	return &model.Provenance{
		Section:        best.Section,
		SignalCategory: string(best.Category),
		MatchedPhrases: best.MatchedPhrases,
		OriginalText:   originalText,
	}
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
