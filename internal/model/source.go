package model

// SignalCategory is the confidence tier of a phrase match. A is strongest.
type SignalCategory string

const (
	CategoryA SignalCategory = "A"
	CategoryB SignalCategory = "B"
	CategoryC SignalCategory = "C"
)

// Rank returns the ordering of a category for tier comparisons (A > B > C).
func (c SignalCategory) Rank() int {
	switch c {
	case CategoryA:
		return 3
	case CategoryB:
		return 2
	case CategoryC:
		return 1
	default:
		return 0
	}
}

// Source is a document carried through the pipeline stages.
type Source struct {
	SourceID      string   `json:"source_id"`   // e.g. "nih-workshop-amr-2025"
	SourceType    string   `json:"source_type"` // "workshop_report", "review_article", "elife_review"
	Title         string   `json:"title,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Organization  string   `json:"organization,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
	URL           string   `json:"url,omitempty"`

	// Full text, or named sections when the ingest stage can recover them.
	FullText string            `json:"full_text,omitempty"`
	Sections map[string]string `json:"sections,omitempty"`
}

// Passage is one candidate open-problem signal hit. Immutable once created;
// the context is the enclosing paragraph, not just the triggering sentence.
type Passage struct {
	SourceID       string         `json:"source_id"`
	Category       SignalCategory `json:"signal_category"`
	MatchedPhrases []string       `json:"matched_phrases"`
	Context        string         `json:"context_text"`
	Section        string         `json:"section,omitempty"`
	Start          int            `json:"start"` // byte offset into the scanned text
	End            int            `json:"end"`
}
