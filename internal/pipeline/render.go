package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mkrasilnikov/gapminer/internal/model"
	"github.com/mkrasilnikov/gapminer/internal/store"
)

// Feed is the downstream-facing JSON export of the canonical problem set.
type Feed struct {
	GeneratedAt   string            `json:"generated_at"`
	PipelineRunID string            `json:"pipeline_run_id"`
	Summary       model.RunCounters `json:"summary"`
	Problems      []FeedProblem     `json:"problems"`
}

// FeedProblem is one canonical problem as consumers see it.
type FeedProblem struct {
	ProblemStatement string              `json:"problem_statement"`
	Domain           string              `json:"domain"`
	Subdomain        string              `json:"subdomain,omitempty"`
	Scope            model.Scope         `json:"scope"`
	MentionCount     int                 `json:"mention_count"`
	Sources          []store.SourceRef   `json:"sources"`
	SubQuestions     []model.SubQuestion `json:"sub_questions,omitempty"`
	RelatedKeywords  []string            `json:"related_keywords,omitempty"`
	Provenance       *model.Provenance   `json:"provenance,omitempty"`
}

// BuildFeed assembles the export for one run, or for the whole database when
// runID is "all". Problems keep the store's ordering: mention count
// descending, then id.
func BuildFeed(st *store.Store, runID string) (*Feed, error) {
	feed := &Feed{
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		PipelineRunID: runID,
	}

	var filter store.ListFilter
	if runID == "all" {
		counters, err := st.TotalCounters()
		if err != nil {
			return nil, fmt.Errorf("load totals: %w", err)
		}
		feed.Summary = counters
	} else {
		counters, _, err := st.RunCounters(runID)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		feed.Summary = counters
		filter.RunID = runID
	}

	problems, err := st.ListProblems(filter)
	if err != nil {
		return nil, fmt.Errorf("load problems: %w", err)
	}

	for _, p := range problems {
		fp := FeedProblem{
			ProblemStatement: p.Statement,
			Domain:           p.Domain,
			Subdomain:        p.Subdomain,
			Scope:            p.Scope,
			MentionCount:     p.MentionCount,
			SubQuestions:     p.SubQuestions,
			RelatedKeywords:  p.Keywords,
			Provenance:       p.Provenance,
		}
		for _, sid := range p.SourceIDs {
			ref, err := st.SourceRef(sid)
			if err != nil {
				return nil, fmt.Errorf("load source %s: %w", sid, err)
			}
			if ref == nil {
				// Source row missing (imported database); keep the id.
				ref = &store.SourceRef{ID: sid}
			}
			fp.Sources = append(fp.Sources, *ref)
		}
		feed.Problems = append(feed.Problems, fp)
	}

	return feed, nil
}

// WriteFeed writes the feed as indented JSON to path.
func WriteFeed(feed *Feed, path string) error {
	data, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}
