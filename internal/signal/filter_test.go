package signal

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

func TestFilter_CategoryRanking(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	// Paragraph matches both a Category A phrase and a Category C phrase;
	// the passage must carry the higher tier and both matched phrases.
	text := "The mechanism of synaptic tagging remains unknown, and the role " +
		"of astrocytes in this process is poorly characterized across species."

	passages := f.Filter("src-1", "discussion", text)
	if len(passages) != 1 {
		t.Fatalf("Expected 1 passage, got %d", len(passages))
	}

	p := passages[0]
	if p.Category != model.CategoryA {
		t.Errorf("Expected category A, got %s", p.Category)
	}

	wantPhrases := map[string]bool{"remains unknown": false, "poorly characterized": false}
	for _, phrase := range p.MatchedPhrases {
		if _, ok := wantPhrases[phrase]; ok {
			wantPhrases[phrase] = true
		}
	}
	for phrase, found := range wantPhrases {
		if !found {
			t.Errorf("Expected matched phrase %q, got %v", phrase, p.MatchedPhrases)
		}
	}
}

func TestFilter_NegativeFilterWins(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	// A negative filter match vetoes the paragraph even when a Category A
	// phrase is present.
	text := "How these pathways interact remains unknown, and the new funding " +
		"mechanism announced this year should enable larger cohort studies."

	passages := f.Filter("src-1", "discussion", text)
	if len(passages) != 0 {
		t.Fatalf("Expected negative filter to drop the paragraph, got %d passages", len(passages))
	}
}

func TestFilter_MinParagraphLength(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{MinParagraphLen: 50})

	passages := f.Filter("src-1", "intro", "This remains unknown.")
	if len(passages) != 0 {
		t.Errorf("Expected short paragraph to be skipped, got %d passages", len(passages))
	}
}

func TestFilter_UnresolvedContextDropped(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	// A paragraph with no blank-line boundary within the context cap cannot
	// be resolved to a sane window and must be dropped, not emitted partially.
	text := "remains unknown " + strings.Repeat("word ", 1200)

	passages := f.Filter("src-1", "body", text)
	if len(passages) != 0 {
		t.Errorf("Expected oversized paragraph to be dropped, got %d passages", len(passages))
	}
}

func TestFilter_Offsets(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	para1 := "The first paragraph is long enough but contains no signal phrases at all."
	para2 := "Whether the effect replicates in humans remains unclear and needs direct tests."
	text := para1 + "\n\n  " + para2 + "\n"

	passages := f.Filter("src-1", "results", text)
	if len(passages) != 1 {
		t.Fatalf("Expected 1 passage, got %d", len(passages))
	}

	p := passages[0]
	if got := text[p.Start:p.End]; got != para2 {
		t.Errorf("Offsets do not slice back to the paragraph:\n got %q\nwant %q", got, para2)
	}
	if p.Context != para2 {
		t.Errorf("Expected context %q, got %q", para2, p.Context)
	}
}

func TestFilter_Deterministic(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	text := "Little is known about long-term outcomes in this population group.\n\n" +
		"Future research should examine dose-response relationships in detail.\n\n" +
		"It is not known whether the marker predicts relapse in adult patients."

	first := f.Filter("src-1", "discussion", text)
	second := f.Filter("src-1", "discussion", text)

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical passages across runs on the same input")
	}
	if len(first) != 3 {
		t.Fatalf("Expected 3 passages, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].Start <= first[i-1].Start {
			t.Errorf("Expected passages in position order, got starts %d then %d",
				first[i-1].Start, first[i].Start)
		}
	}
}

func TestFilterSource_SectionOrder(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	src := model.Source{
		SourceID: "src-1",
		Sections: map[string]string{
			"results":    "Whether this holds at scale remains unclear in all tested conditions.",
			"discussion": "The causal pathway has not been established for either phenotype yet.",
		},
	}

	passages := f.FilterSource(src)
	if len(passages) != 2 {
		t.Fatalf("Expected 2 passages, got %d", len(passages))
	}
	// Sections are visited in sorted name order.
	if passages[0].Section != "discussion" || passages[1].Section != "results" {
		t.Errorf("Expected sections [discussion results], got [%s %s]",
			passages[0].Section, passages[1].Section)
	}
}

func TestFilterSource_FullTextFallback(t *testing.T) {
	f := NewFilter(DefaultPhraseConfig(), model.SignalConfig{})

	src := model.Source{
		SourceID: "src-1",
		FullText: "The upstream regulator of this checkpoint remains unknown in vertebrates.",
	}

	passages := f.FilterSource(src)
	if len(passages) != 1 {
		t.Fatalf("Expected 1 passage, got %d", len(passages))
	}
	if passages[0].Section != "full_text" {
		t.Errorf("Expected section full_text, got %s", passages[0].Section)
	}
}
