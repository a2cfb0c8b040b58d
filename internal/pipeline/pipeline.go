package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkrasilnikov/gapminer/internal/cache"
	"github.com/mkrasilnikov/gapminer/internal/cost"
	"github.com/mkrasilnikov/gapminer/internal/dedup"
	"github.com/mkrasilnikov/gapminer/internal/extract"
	"github.com/mkrasilnikov/gapminer/internal/llm"
	"github.com/mkrasilnikov/gapminer/internal/model"
	"github.com/mkrasilnikov/gapminer/internal/signal"
	"github.com/mkrasilnikov/gapminer/internal/store"
	"github.com/mkrasilnikov/gapminer/internal/worker"
)

// Pipeline wires the stages together: signal filter, extraction
// orchestrator, dedup clusterer, and the problem store.
type Pipeline struct {
	cfg       *model.Config
	filter    *signal.Filter
	client    *extract.Client
	clusterer *dedup.Clusterer
	store     *store.Store
	tracker   *cost.Tracker
	orch      *Orchestrator
	verbose   bool
}

// RunReport is what a completed run hands back: the write-once run record
// and the canonical problem set it produced. The problem set survives a
// persistence failure so the persistence step can be retried.
type RunReport struct {
	Run      model.PipelineRun
	Problems []model.CanonicalProblem
}

// New assembles a pipeline from configuration. The provider is already
// constructed so the CLI can fail fast on credential problems.
func New(cfg *model.Config, phrases *signal.PhraseConfig, provider llm.Provider, st *store.Store) *Pipeline {
	if phrases == nil {
		phrases = signal.DefaultPhraseConfig()
	}

	tracker := cost.NewTracker(cfg.Budget.MaxSpendUSD)

	var respCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		respCache = cache.New(cfg.Cache.TTL, cfg.Cache.Dir)
	}

	client := extract.NewClient(provider, tracker, respCache, cfg.LLM, cfg.Budget)
	client.SetVerbose(cfg.Output.Verbose)

	filter := signal.NewFilter(phrases, cfg.Signal)
	filter.SetVerbose(cfg.Output.Verbose)

	limiter := worker.NewLimiter(cfg.LLM.RequestsPerSecond, 1)

	return &Pipeline{
		cfg:       cfg,
		filter:    filter,
		client:    client,
		clusterer: dedup.NewClusterer(dedup.NewNormalizer(phrases.StopPhrases), nil, cfg.Dedup.SimilarityThreshold),
		store:     st,
		tracker:   tracker,
		orch:      NewOrchestrator(client, limiter, provider.Name(), cfg.Concurrency.Workers),
		verbose:   cfg.Output.Verbose,
	}
}

// Run processes a bounded batch of sources and terminates. Per-document
// failures are contained; the only errors returned are persistence failures,
// and the already-computed canonical set rides along in the report for a
// manual retry.
func (p *Pipeline) Run(ctx context.Context, sources []model.Source) (*RunReport, error) {
	runID := model.GenerateRunID()
	startedAt := time.Now().UTC()

	report := &RunReport{
		Run: model.PipelineRun{
			RunID:     runID,
			StartedAt: startedAt,
		},
	}

	alreadyDone, err := p.store.ExtractedSourceIDs()
	if err != nil {
		return report, fmt.Errorf("load resume state: %w", err)
	}

	// Stage 1: signal filtering. Pure and stateless, runs inline.
	var docs []Document
	passagesBySource := make(map[string][]model.Passage)
	typesSeen := make(map[string]bool)
	var preStatuses []model.DocumentStatus

	for _, src := range sources {
		typesSeen[src.SourceType] = true
		report.Run.Counters.SourcesScanned++

		if alreadyDone[src.SourceID] {
			preStatuses = append(preStatuses, model.DocumentStatus{
				SourceID: src.SourceID,
				Outcome:  model.OutcomeSkippedResumed,
				Reason:   "already extracted in a previous run",
			})
			continue
		}

		passages := p.filter.FilterSource(src)
		report.Run.Counters.SignalPassages += len(passages)
		passagesBySource[src.SourceID] = passages

		if err := p.store.UpsertSource(src, len(passages)); err != nil {
			return report, fmt.Errorf("persist source %s: %w", src.SourceID, err)
		}

		if len(passages) == 0 {
			preStatuses = append(preStatuses, model.DocumentStatus{
				SourceID: src.SourceID,
				Outcome:  model.OutcomeNoSignals,
			})
			continue
		}
		docs = append(docs, Document{Source: src, Passages: passages})
	}

	for t := range typesSeen {
		report.Run.SourceTypes = append(report.Run.SourceTypes, t)
	}

	// Stage 2: budgeted concurrent extraction.
	output := p.orch.Run(ctx, docs)
	report.Run.Documents = append(preStatuses, output.Statuses...)
	report.Run.Counters.ProblemsExtracted = len(output.Records)
	for _, r := range output.Records {
		report.Run.Counters.SubQuestions += len(r.SubQuestions)
	}

	if p.verbose {
		fmt.Fprintf(os.Stderr, "Extracted %d problems from %d documents\n", len(output.Records), len(docs))
		fmt.Fprintln(os.Stderr, p.tracker.Status())
	}

	// Stage 3: dedup/clustering over the full record set, merged
	// incrementally into the existing canonical set.
	existing, err := p.store.ListProblems(store.ListFilter{})
	if err != nil {
		return report, fmt.Errorf("load canonical problems: %w", err)
	}
	merged := p.clusterer.MergeInto(existing, output.Records)

	runSources := make(map[string]bool)
	for _, r := range output.Records {
		runSources[r.SourceID] = true
	}

	for i := range merged {
		if merged[i].Provenance == nil {
			merged[i].Provenance = buildProvenance(merged[i].OriginalText,
				passagesForProblem(merged[i], passagesBySource))
		}
	}

	report.Problems = merged
	report.Run.Counters.ProblemsAfterDedup = countRunProblems(merged, runSources)
	report.Run.TotalCost = p.tracker.Spent()
	report.Run.FinishedAt = time.Now().UTC()
	if snapshot, err := yaml.Marshal(p.cfg); err == nil {
		report.Run.Config = string(snapshot)
	}

	// Stage 4: persistence. Idempotent by stable identifier, so a failure
	// here is retryable without recomputing.
	if err := p.Persist(report, runSources); err != nil {
		return report, err
	}

	return report, nil
}

// Persist writes the canonical set and the run record. Safe to call again
// after a storage failure.
func (p *Pipeline) Persist(report *RunReport, runSources map[string]bool) error {
	for i := range report.Problems {
		problem := &report.Problems[i]
		if err := p.store.UpsertProblem(problem); err != nil {
			return fmt.Errorf("persist problem: %w", err)
		}
		if touchesRun(problem, runSources) {
			if err := p.store.LinkRunProblem(report.Run.RunID, problem.ID); err != nil {
				return fmt.Errorf("link run problem: %w", err)
			}
		}
	}
	if err := p.store.RecordRun(report.Run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Tracker exposes the shared spend counter (read-only use by callers).
func (p *Pipeline) Tracker() *cost.Tracker { return p.tracker }

func passagesForProblem(problem model.CanonicalProblem, bySource map[string][]model.Passage) []model.Passage {
	var passages []model.Passage
	for _, sid := range problem.SourceIDs {
		passages = append(passages, bySource[sid]...)
	}
	return passages
}

func touchesRun(problem *model.CanonicalProblem, runSources map[string]bool) bool {
	for _, sid := range problem.SourceIDs {
		if runSources[sid] {
			return true
		}
	}
	return false
}

func countRunProblems(problems []model.CanonicalProblem, runSources map[string]bool) int {
	n := 0
	for i := range problems {
		if touchesRun(&problems[i], runSources) {
			n++
		}
	}
	return n
}
