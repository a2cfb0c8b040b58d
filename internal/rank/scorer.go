package rank

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

// Decision buckets a sub-question (and, via its best sub-question, a
// problem) into the go/no-go screen's outcomes.
type Decision string

const (
	DecisionGoNow              Decision = "go_now"
	DecisionNeedsSpecification Decision = "needs_specification"
	DecisionNeedsRepositioning Decision = "needs_repositioning"
)

var decisionRank = map[Decision]int{
	DecisionGoNow:              0,
	DecisionNeedsSpecification: 1,
	DecisionNeedsRepositioning: 2,
}

// Breakdown is the per-dimension score of one sub-question.
type Breakdown struct {
	Biosafety    float64 `json:"biosafety"`
	Technique    float64 `json:"technique"`
	Reagent      float64 `json:"reagent"`
	Cost         float64 `json:"cost"`
	Readiness    float64 `json:"readiness"`
	Tractability float64 `json:"tractability"`
}

// SubQuestionScore is the scored form of one sub-question.
type SubQuestionScore struct {
	Question          string           `json:"question"`
	Complexity        model.Complexity `json:"complexity,omitempty"`
	Composite         float64          `json:"composite"`
	RawScore          float64          `json:"raw_score"`
	Confidence        float64          `json:"confidence"`
	Tier              string           `json:"tier"`
	Decision          Decision         `json:"decision"`
	Eligible          bool             `json:"eligible"`
	IneligibleReasons []string         `json:"ineligible_reasons,omitempty"`
	Breakdown         Breakdown        `json:"breakdown"`
}

// ProblemRanking aggregates a canonical problem's sub-question scores. The
// problem's bucket is its best sub-question's decision.
type ProblemRanking struct {
	ProblemID          int64              `json:"problem_id,omitempty"`
	Statement          string             `json:"problem_statement"`
	Domain             string             `json:"domain,omitempty"`
	Subdomain          string             `json:"subdomain,omitempty"`
	Scope              model.Scope        `json:"scope,omitempty"`
	SourceIDs          []string           `json:"source_ids,omitempty"`
	BestScore          float64            `json:"best_score"`
	BestTier           string             `json:"best_tier"`
	BestConfidence     float64            `json:"best_confidence"`
	Decision           Decision           `json:"decision_bucket"`
	AvgScore           float64            `json:"avg_score"`
	GoNowCount         int                `json:"go_now_count"`
	NeedsSpecCount     int                `json:"needs_specification_count"`
	RepositioningCount int                `json:"needs_repositioning_count"`
	SubQuestionScores  []SubQuestionScore `json:"sub_question_scores,omitempty"`
}

// Summary counts the decision buckets across a ranking.
type Summary struct {
	TotalProblems      int `json:"total_problems"`
	GoNow              int `json:"go_now"`
	NeedsSpecification int `json:"needs_specification"`
	NeedsRepositioning int `json:"needs_repositioning"`
}

// Rankings is the full output of one feasibility screen.
type Rankings struct {
	CriteriaVersion string           `json:"criteria_version"`
	Summary         Summary          `json:"summary"`
	Problems        []ProblemRanking `json:"ranked_problems"`
}

// Scorer applies the two-stage feasibility screen: an eligibility gate
// (is the sub-question bench-testable at all), then weighted scoring of
// safety, technique, reagent sourcing, cost, readiness, and tractability,
// discounted by an uncertainty penalty when little is known.
type Scorer struct{}

// NewScorer creates a new scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// RankProblems scores every problem and orders the result by decision
// bucket, then best score descending.
func (s *Scorer) RankProblems(problems []model.CanonicalProblem) *Rankings {
	r := &Rankings{CriteriaVersion: "feasibility_go_no_go_v2"}
	for _, p := range problems {
		r.Problems = append(r.Problems, s.ScoreProblem(p))
	}

	sort.SliceStable(r.Problems, func(i, j int) bool {
		a, b := r.Problems[i], r.Problems[j]
		if decisionRank[a.Decision] != decisionRank[b.Decision] {
			return decisionRank[a.Decision] < decisionRank[b.Decision]
		}
		return a.BestScore > b.BestScore
	})

	r.Summary.TotalProblems = len(r.Problems)
	for _, p := range r.Problems {
		switch p.Decision {
		case DecisionGoNow:
			r.Summary.GoNow++
		case DecisionNeedsSpecification:
			r.Summary.NeedsSpecification++
		default:
			r.Summary.NeedsRepositioning++
		}
	}
	return r
}

// ScoreProblem scores each sub-question and takes the best one (by decision
// bucket, then composite) as the problem's headline.
func (s *Scorer) ScoreProblem(p model.CanonicalProblem) ProblemRanking {
	pr := ProblemRanking{
		ProblemID: p.ID,
		Statement: p.Statement,
		Domain:    p.Domain,
		Subdomain: p.Subdomain,
		Scope:     p.Scope,
		SourceIDs: p.SourceIDs,
		Decision:  DecisionNeedsRepositioning,
		BestTier:  "low",
	}

	var sumScore float64
	for _, sq := range p.SubQuestions {
		scored := s.ScoreSubQuestion(sq)
		pr.SubQuestionScores = append(pr.SubQuestionScores, scored)
		sumScore += scored.Composite
		switch scored.Decision {
		case DecisionGoNow:
			pr.GoNowCount++
		case DecisionNeedsSpecification:
			pr.NeedsSpecCount++
		default:
			pr.RepositioningCount++
		}
	}

	sort.SliceStable(pr.SubQuestionScores, func(i, j int) bool {
		a, b := pr.SubQuestionScores[i], pr.SubQuestionScores[j]
		if decisionRank[a.Decision] != decisionRank[b.Decision] {
			return decisionRank[a.Decision] < decisionRank[b.Decision]
		}
		return a.Composite > b.Composite
	})

	if len(pr.SubQuestionScores) > 0 {
		best := pr.SubQuestionScores[0]
		pr.BestScore = best.Composite
		pr.BestTier = best.Tier
		pr.BestConfidence = best.Confidence
		pr.Decision = best.Decision
		pr.AvgScore = round3(sumScore / float64(len(pr.SubQuestionScores)))
	}
	return pr
}

// ScoreSubQuestion runs the gate and all six dimensions over the combined
// question, evidence-needed, and discipline text.
func (s *Scorer) ScoreSubQuestion(sq model.SubQuestion) SubQuestionScore {
	text := strings.ToLower(strings.Join([]string{
		sq.Question, sq.EvidenceNeeded, strings.Join(sq.Disciplines, " "),
	}, " "))
	complexity := string(sq.Complexity)
	if complexity == "" {
		complexity = "medium"
	}

	eligible, reasons, blockers := s.gate(text)

	bio, bioKnown := s.scoreBiosafety(text)
	tech, techKnown := s.scoreTechnique(text)
	reagent, reagentKnown := s.scoreReagent(text)
	cost := s.scoreByComplexity(complexity)
	readiness, readinessSignals := s.scoreReadiness(text)
	tractability := s.scoreTractability(complexity, text)

	raw := weights.Biosafety*bio +
		weights.Technique*tech +
		weights.Reagent*reagent +
		weights.Cost*cost +
		weights.Readiness*readiness +
		weights.Tractability*tractability

	// A safety disqualifier caps the score regardless of everything else.
	if bio == 0 {
		raw = math.Min(raw, 0.1)
	}

	known := 0
	for _, k := range []bool{bioKnown, techKnown, reagentKnown, readinessSignals >= 2} {
		if k {
			known++
		}
	}
	confidence := float64(known) / 4
	final := raw * (uncertaintyBase + (1-uncertaintyBase)*confidence)

	return SubQuestionScore{
		Question:          sq.Question,
		Complexity:        model.Complexity(complexity),
		Composite:         round3(final),
		RawScore:          round3(raw),
		Confidence:        round3(confidence),
		Tier:              tierFor(final),
		Decision:          s.decide(final, confidence, eligible, blockers, readiness),
		Eligible:          eligible,
		IneligibleReasons: reasons,
		Breakdown: Breakdown{
			Biosafety:    bio,
			Technique:    tech,
			Reagent:      reagent,
			Cost:         cost,
			Readiness:    readiness,
			Tractability: tractability,
		},
	}
}

// gate checks bench-testability: an experimental action, a measurable
// endpoint, and a manipulable system must all be present. Policy,
// infrastructure, or modeling language without a bench plan also blocks.
func (s *Scorer) gate(text string) (eligible bool, reasons []string, blockers bool) {
	hasAction := matchesAny(text, actionKeywords)
	hasMeasurement := matchesAny(text, measurementKeywords)
	hasSystem := matchesAny(text, systemKeywords)

	eligible = true
	if !hasAction {
		eligible = false
		reasons = append(reasons, "missing_experimental_action")
	}
	if !hasMeasurement {
		eligible = false
		reasons = append(reasons, "missing_measurable_endpoint")
	}
	if !hasSystem {
		eligible = false
		reasons = append(reasons, "missing_manipulable_system")
	}

	blockers = matchesAny(text, policyKeywords) ||
		matchesAny(text, infrastructureKeywords) ||
		matchesAny(text, computationalKeywords)
	if blockers && !hasAction {
		eligible = false
		reasons = append(reasons, "non_bench_work_without_bench_plan")
	}
	return eligible, reasons, blockers
}

func (s *Scorer) decide(final, confidence float64, eligible, blockers bool, readiness float64) Decision {
	if !eligible {
		return DecisionNeedsRepositioning
	}
	if blockers && readiness < 0.5 {
		return DecisionNeedsRepositioning
	}
	if final >= goNowScoreThreshold && confidence >= goNowConfidence {
		return DecisionGoNow
	}
	if final >= needsSpecScoreThreshold && confidence >= needsSpecConfidence {
		return DecisionNeedsSpecification
	}
	return DecisionNeedsRepositioning
}

func (s *Scorer) scoreBiosafety(text string) (float64, bool) {
	for _, tier := range biosafetyTiers {
		if matchesAny(text, tier.keywords) {
			return tier.score, true
		}
	}
	return biosafetyUnknownScore, false
}

// scoreTechnique blends every matched tier: the hardest technique dominates
// (a cryo-EM step is not offset by a PCR step) but the rest still count.
func (s *Scorer) scoreTechnique(text string) (float64, bool) {
	var scores []float64
	for _, tier := range techniqueTiers {
		if matchesAny(text, tier.keywords) {
			scores = append(scores, tier.score)
		}
	}
	if len(scores) == 0 {
		return techniqueUnknownScore, false
	}
	if len(scores) == 1 {
		return scores[0], true
	}
	sort.Float64s(scores)
	return 0.4*scores[0] + 0.6*median(scores), true
}

func (s *Scorer) scoreReagent(text string) (float64, bool) {
	for _, tier := range reagentTiers {
		if matchesAny(text, tier.keywords) {
			return tier.score, true
		}
	}
	return reagentUnknownScore, false
}

func (s *Scorer) scoreByComplexity(complexity string) float64 {
	if v, ok := costByComplexity[complexity]; ok {
		return v
	}
	return costByComplexity["medium"]
}

// scoreReadiness rewards sub-questions that already read like a protocol.
// Returns the score and how many of the three core signals fired.
func (s *Scorer) scoreReadiness(text string) (float64, int) {
	hasAction := matchesAny(text, actionKeywords)
	hasMeasurement := matchesAny(text, measurementKeywords)
	hasSystem := matchesAny(text, systemKeywords)
	hasControl := matchesAny(text, controlKeywords)

	score := 0.0
	if hasAction {
		score += 0.4
	}
	if hasMeasurement {
		score += 0.4
	}
	if hasSystem {
		score += 0.2
	}
	if hasControl {
		score += 0.1
	}
	if hasAction && hasMeasurement && hasSystem {
		score += 0.1
	}

	signals := 0
	for _, h := range []bool{hasAction, hasMeasurement, hasSystem} {
		if h {
			signals++
		}
	}
	return clamp01(score), signals
}

func (s *Scorer) scoreTractability(complexity, text string) float64 {
	score := s.scoreByComplexity(complexity)
	if matchesAny(text, multiYearScaleKeywords) {
		score -= 0.20
	}
	if matchesAny(text, infrastructureKeywords) {
		score -= 0.15
	}
	if matchesAny(text, computationalKeywords) {
		score -= 0.10
	}
	return clamp01(score)
}

func tierFor(score float64) string {
	switch {
	case score >= tierHighThreshold:
		return "high"
	case score >= tierMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

// keywordPatterns is filled at init from every criteria list, so matching
// never compiles at score time.
var keywordPatterns = map[string]*regexp.Regexp{}

func init() {
	lists := [][]string{
		actionKeywords, measurementKeywords, systemKeywords, controlKeywords,
		policyKeywords, infrastructureKeywords, computationalKeywords,
		multiYearScaleKeywords,
	}
	for _, tier := range biosafetyTiers {
		lists = append(lists, tier.keywords)
	}
	for _, tier := range techniqueTiers {
		lists = append(lists, tier.keywords)
	}
	for _, tier := range reagentTiers {
		lists = append(lists, tier.keywords)
	}
	for _, list := range lists {
		for _, kw := range list {
			if _, ok := keywordPatterns[kw]; ok {
				continue
			}
			phrase := strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(kw)), " ", `\s+`)
			keywordPatterns[kw] = regexp.MustCompile(`(^|[^a-z0-9])` + phrase + `($|[^a-z0-9])`)
		}
	}
}

// matchesAny reports whether any keyword occurs whole-word in text.
// Text must already be lower-cased.
func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if keywordPatterns[kw].MatchString(text) {
			return true
		}
	}
	return false
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
