package dedup

import (
	"testing"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

func TestClusterer_ExactDuplicates(t *testing.T) {
	c := NewClusterer(NewNormalizer([]string{"it remains unknown whether"}), nil, 0.85)

	records := []model.Problem{
		{SourceID: "src-a", Statement: "It remains unknown whether gut microbiota drive early neurodevelopment.", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 0},
		{SourceID: "src-b", Statement: "gut microbiota drive early neurodevelopment", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 10000},
		{SourceID: "src-b", Statement: "Gut microbiota drive early neurodevelopment?", Domain: "microbiology", Scope: model.ScopeMedium, Seq: 10001},
	}

	problems := c.Cluster(records)
	if len(problems) != 1 {
		t.Fatalf("Expected 1 canonical problem, got %d", len(problems))
	}

	p := problems[0]
	// Mention count is distinct sources, not raw records.
	if p.MentionCount != 2 {
		t.Errorf("Expected mention count 2, got %d", p.MentionCount)
	}
	if len(p.SourceIDs) != 2 {
		t.Errorf("Expected 2 source ids, got %v", p.SourceIDs)
	}
	// Majority domain wins.
	if p.Domain != "neuroscience" {
		t.Errorf("Expected domain neuroscience, got %s", p.Domain)
	}
	// Narrow wins the 2-1 scope vote.
	if p.Scope != model.ScopeNarrow {
		t.Errorf("Expected scope narrow, got %s", p.Scope)
	}
}

func TestClusterer_SimilarityMerge(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	records := []model.Problem{
		{SourceID: "src-a", Statement: "how do cortical microcircuits encode temporal sequences", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 0},
		{SourceID: "src-b", Statement: "how do cortical microcircuits encode temporal sequences in vivo", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 10000},
		{SourceID: "src-c", Statement: "what limits the efficiency of perovskite solar cells", Domain: "materials science", Scope: model.ScopeNarrow, Seq: 20000},
	}

	problems := c.Cluster(records)
	if len(problems) != 2 {
		t.Fatalf("Expected 2 canonical problems, got %d", len(problems))
	}

	var merged *model.CanonicalProblem
	for i := range problems {
		if problems[i].Domain == "neuroscience" {
			merged = &problems[i]
		}
	}
	if merged == nil {
		t.Fatal("Expected a neuroscience canonical problem")
	}
	if merged.MentionCount != 2 {
		t.Errorf("Expected merged mention count 2, got %d", merged.MentionCount)
	}
}

func TestClusterer_SameSourceNearDuplicateMentionCount(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	// One source yielding two near-duplicate records (distinct normalized
	// keys, high lexical similarity) contributes a mention count of 1.
	records := []model.Problem{
		{SourceID: "src-x", Statement: "how do cortical microcircuits encode temporal sequences", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 0},
		{SourceID: "src-x", Statement: "how do cortical microcircuits encode temporal sequences in vivo", Domain: "neuroscience", Scope: model.ScopeNarrow, Seq: 1},
	}

	problems := c.Cluster(records)
	if len(problems) != 1 {
		t.Fatalf("Expected 1 canonical problem, got %d", len(problems))
	}
	if problems[0].MentionCount != 1 {
		t.Errorf("Expected mention count 1 for a single source, got %d", problems[0].MentionCount)
	}
	if len(problems[0].SourceIDs) != 1 || problems[0].SourceIDs[0] != "src-x" {
		t.Errorf("Expected source ids [src-x], got %v", problems[0].SourceIDs)
	}
}

func TestClusterer_RepresentativeSelection(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	// Same normalized key; the record carrying sub-questions becomes the
	// representative even though it arrived later.
	records := []model.Problem{
		{SourceID: "src-a", Statement: "Why does immune tolerance break down in autoimmunity", Seq: 0, Domain: "immunology", Scope: model.ScopeMedium},
		{
			SourceID:  "src-b",
			Statement: "why does immune tolerance break down in autoimmunity?",
			Seq:       10000,
			Domain:    "immunology",
			Scope:     model.ScopeMedium,
			Notes:     "richer record",
			SubQuestions: []model.SubQuestion{
				{Question: "Which checkpoint fails first?", SourceID: "src-b"},
			},
		},
	}

	problems := c.Cluster(records)
	if len(problems) != 1 {
		t.Fatalf("Expected 1 canonical problem, got %d", len(problems))
	}
	if problems[0].Notes != "richer record" {
		t.Errorf("Expected the sub-question-bearing record as representative, got notes %q", problems[0].Notes)
	}
	if len(problems[0].SubQuestions) != 1 {
		t.Errorf("Expected 1 sub-question, got %d", len(problems[0].SubQuestions))
	}
}

func TestClusterer_SubQuestionDedup(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	records := []model.Problem{
		{
			SourceID:  "src-a",
			Statement: "What sets the speed limit of enzyme catalysis",
			Domain:    "biochemistry",
			Scope:     model.ScopeNarrow,
			Seq:       0,
			SubQuestions: []model.SubQuestion{
				{Question: "Does active-site flexibility matter?", EvidenceNeeded: "kinetics"},
			},
		},
		{
			SourceID:  "src-b",
			Statement: "what sets the speed limit of enzyme catalysis?",
			Domain:    "biochemistry",
			Scope:     model.ScopeNarrow,
			Seq:       10000,
			SubQuestions: []model.SubQuestion{
				{Question: "Does active-site flexibility matter", EvidenceNeeded: "single-molecule kinetics across homologs"},
				{Question: "How large are tunneling contributions?"},
			},
		},
	}

	problems := c.Cluster(records)
	if len(problems) != 1 {
		t.Fatalf("Expected 1 canonical problem, got %d", len(problems))
	}

	sqs := problems[0].SubQuestions
	if len(sqs) != 2 {
		t.Fatalf("Expected 2 deduplicated sub-questions, got %d", len(sqs))
	}
	// Duplicate question keeps the richer evidence description.
	if sqs[0].EvidenceNeeded != "single-molecule kinetics across homologs" {
		t.Errorf("Expected richer evidence text to win, got %q", sqs[0].EvidenceNeeded)
	}
	// Sub-question provenance points at its contributing source.
	if sqs[0].SourceID != "src-a" {
		t.Errorf("Expected first sub-question source src-a, got %s", sqs[0].SourceID)
	}
	if sqs[1].SourceID != "src-b" {
		t.Errorf("Expected second sub-question source src-b, got %s", sqs[1].SourceID)
	}
}

func TestClusterer_OrderIndependent(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	records := []model.Problem{
		{SourceID: "src-a", Statement: "how is chromatin reorganized after mitosis", Domain: "cell biology", Scope: model.ScopeNarrow, Seq: 0},
		{SourceID: "src-b", Statement: "how is chromatin reorganized after mitosis in humans", Domain: "cell biology", Scope: model.ScopeNarrow, Seq: 10000},
		{SourceID: "src-c", Statement: "what drives antibiotic persistence in biofilms", Domain: "microbiology", Scope: model.ScopeNarrow, Seq: 20000},
	}
	reversed := []model.Problem{records[2], records[1], records[0]}

	a := c.Cluster(records)
	b := c.Cluster(reversed)

	if len(a) != len(b) {
		t.Fatalf("Expected same cluster count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Statement != b[i].Statement {
			t.Errorf("Cluster %d representative differs: %q vs %q", i, a[i].Statement, b[i].Statement)
		}
		if a[i].MentionCount != b[i].MentionCount {
			t.Errorf("Cluster %d mention count differs: %d vs %d", i, a[i].MentionCount, b[i].MentionCount)
		}
	}
}

func TestClusterer_MergeInto(t *testing.T) {
	c := NewClusterer(NewNormalizer(nil), nil, 0.85)

	existing := []model.CanonicalProblem{
		{
			ID:           7,
			Statement:    "What limits coral reef recovery after bleaching",
			Domain:       "marine biology",
			Scope:        model.ScopeMedium,
			MentionCount: 1,
			SourceIDs:    []string{"src-a"},
		},
	}

	records := []model.Problem{
		// Matches the existing canonical exactly after normalization.
		{SourceID: "src-b", Statement: "what limits coral reef recovery after bleaching?", Domain: "marine biology", Scope: model.ScopeMedium, Seq: 0},
		// Genuinely new problem.
		{SourceID: "src-b", Statement: "can machine learning predict protein aggregation propensity", Domain: "computational biology", Scope: model.ScopeNarrow, Seq: 1},
	}

	merged := c.MergeInto(existing, records)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 canonical problems, got %d", len(merged))
	}

	// The existing problem keeps its identifier and gains the new source.
	if merged[0].ID != 7 {
		t.Errorf("Expected existing id 7 preserved, got %d", merged[0].ID)
	}
	if merged[0].MentionCount != 2 {
		t.Errorf("Expected mention count 2 after merge, got %d", merged[0].MentionCount)
	}

	// The new problem has no id yet.
	if merged[1].ID != 0 {
		t.Errorf("Expected new problem without id, got %d", merged[1].ID)
	}
	if merged[1].SourceIDs[0] != "src-b" {
		t.Errorf("Expected new problem sourced from src-b, got %v", merged[1].SourceIDs)
	}
}

func TestLexicalCosine_Score(t *testing.T) {
	sim := LexicalCosine{}

	if got := sim.Score("same words here", "same words here"); got < 0.999 {
		t.Errorf("Expected identical statements to score ~1.0, got %f", got)
	}
	if got := sim.Score("alpha beta gamma", "delta epsilon zeta"); got != 0 {
		t.Errorf("Expected disjoint statements to score 0, got %f", got)
	}
	if got := sim.Score("", "anything"); got != 0 {
		t.Errorf("Expected empty statement to score 0, got %f", got)
	}
}
