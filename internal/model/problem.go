package model

import "time"

// Scope classifies how decomposable a problem is.
type Scope string

const (
	ScopeNarrow Scope = "narrow"
	ScopeMedium Scope = "medium"
	ScopeBroad  Scope = "broad"
)

// Rank orders scopes from narrowest to broadest.
func (s Scope) Rank() int {
	switch s {
	case ScopeNarrow:
		return 1
	case ScopeMedium:
		return 2
	case ScopeBroad:
		return 3
	default:
		return 0
	}
}

// Complexity estimates the effort of answering a sub-question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// SubQuestion is one decomposed piece of an open problem.
type SubQuestion struct {
	Question       string     `json:"question"`
	EvidenceNeeded string     `json:"evidence_needed,omitempty"`
	Disciplines    []string   `json:"disciplines,omitempty"`
	Complexity     Complexity `json:"estimated_complexity,omitempty"`
	SourceID       string     `json:"source_id,omitempty"` // set at merge time
}

// Problem is the raw output of one extraction call for one document.
// Never mutated after creation; downstream stages derive new entities.
type Problem struct {
	SourceID     string        `json:"source_id"`
	Statement    string        `json:"problem_statement"`
	Domain       string        `json:"domain"`
	Subdomain    string        `json:"subdomain,omitempty"`
	Scope        Scope         `json:"scope"`
	SubQuestions []SubQuestion `json:"sub_questions,omitempty"`
	OriginalText string        `json:"original_text,omitempty"` // supporting quote from the source
	Keywords     []string      `json:"related_keywords,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Seq          int           `json:"-"` // arrival order, used for stable tie-breaks
}

// Provenance links a canonical problem back to the best-matching signal passage.
type Provenance struct {
	Section        string   `json:"section,omitempty"`
	SignalCategory string   `json:"signal_category,omitempty"`
	MatchedPhrases []string `json:"matched_phrases,omitempty"`
	OriginalText   string   `json:"original_text,omitempty"`
}

// CanonicalProblem is the merged, deduplicated representation of one open
// problem across all sources that mention it. Its ID is stable across runs.
type CanonicalProblem struct {
	ID           int64         `json:"id,omitempty"`
	Statement    string        `json:"problem_statement"`
	Domain       string        `json:"domain"`
	Subdomain    string        `json:"subdomain,omitempty"`
	Scope        Scope         `json:"scope"`
	MentionCount int           `json:"mention_count"` // distinct contributing sources, not raw records
	SourceIDs    []string      `json:"source_ids"`
	SubQuestions []SubQuestion `json:"sub_questions,omitempty"`
	Keywords     []string      `json:"related_keywords,omitempty"`
	OriginalText string        `json:"original_text,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Provenance   *Provenance   `json:"provenance,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
}

// DocumentOutcome records how a document fared during a run.
type DocumentOutcome string

const (
	OutcomeExtracted      DocumentOutcome = "extracted"
	OutcomeNoSignals      DocumentOutcome = "no_signal_passages"
	OutcomeFailed         DocumentOutcome = "extraction_failed"
	OutcomeSkippedBudget  DocumentOutcome = "skipped_budget_exceeded"
	OutcomeSkippedCancel  DocumentOutcome = "skipped_cancelled"
	OutcomeSkippedResumed DocumentOutcome = "skipped_already_extracted"
)

// DocumentStatus is the per-document entry in a run report.
type DocumentStatus struct {
	SourceID string          `json:"source_id"`
	Outcome  DocumentOutcome `json:"outcome"`
	Reason   string          `json:"reason,omitempty"`
	Problems int             `json:"problems,omitempty"`
}
