package pipeline

import (
	"context"
	"errors"
	"sort"

	"github.com/mkrasilnikov/gapminer/internal/extract"
	"github.com/mkrasilnikov/gapminer/internal/model"
	"github.com/mkrasilnikov/gapminer/internal/worker"
)

// Extractor abstracts the extraction client so the orchestrator can be
// exercised with replay stubs.
type Extractor interface {
	Extract(ctx context.Context, src model.Source, passages []model.Passage) ([]model.Problem, error)
}

// Document is one unit of orchestrator work: a source with its passages.
type Document struct {
	Source   model.Source
	Passages []model.Passage
}

// RunOutput aggregates per-document results into a flat record stream plus
// the per-document statuses a completed run always reports.
type RunOutput struct {
	Records  []model.Problem
	Statuses []model.DocumentStatus
}

// Orchestrator schedules extraction calls across documents under a fixed
// concurrency cap. Budget enforcement lives in the shared cost tracker the
// extraction client reserves against; the orchestrator translates budget
// refusals into SkippedBudgetExceeded outcomes.
type Orchestrator struct {
	extractor Extractor
	limiter   *worker.Limiter
	provider  string
	workers   int
}

// NewOrchestrator creates an orchestrator. A nil limiter disables rate
// limiting (useful in tests).
func NewOrchestrator(extractor Extractor, limiter *worker.Limiter, provider string, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		extractor: extractor,
		limiter:   limiter,
		provider:  provider,
		workers:   workers,
	}
}

// extractJob runs one document through the extraction client.
type extractJob struct {
	runCtx context.Context
	orch   *Orchestrator
	index  int
	doc    Document
}

// extractResult is the per-document job outcome.
type extractResult struct {
	index    int
	sourceID string
	records  []model.Problem
	outcome  model.DocumentOutcome
	reason   string
}

func (r *extractResult) Err() error { return nil }

// Execute runs the extraction call. The run context gates dispatch: a job
// that reaches a worker after cancellation is skipped, while calls already
// in flight inside the client complete on their own timeout.
func (j *extractJob) Execute(_ context.Context) worker.Result {
	res := &extractResult{index: j.index, sourceID: j.doc.Source.SourceID}

	if j.runCtx.Err() != nil {
		res.outcome = model.OutcomeSkippedCancel
		res.reason = "run cancelled before dispatch"
		return res
	}

	if j.orch.limiter != nil {
		if err := j.orch.limiter.Wait(j.runCtx, j.orch.provider); err != nil {
			res.outcome = model.OutcomeSkippedCancel
			res.reason = "run cancelled before dispatch"
			return res
		}
	}

	records, err := j.orch.extractor.Extract(j.runCtx, j.doc.Source, j.doc.Passages)
	switch {
	case err == nil:
		// Stable sequence numbers: document order first, then the record's
		// order within the response. Re-running the same document set yields
		// the same sequence regardless of completion order.
		for k := range records {
			records[k].Seq = j.index*10000 + k
		}
		res.records = records
		res.outcome = model.OutcomeExtracted

	case errors.Is(err, extract.ErrBudgetExceeded):
		res.outcome = model.OutcomeSkippedBudget
		res.reason = "spend ceiling reached"

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.outcome = model.OutcomeSkippedCancel
		res.reason = "run cancelled"

	default:
		res.outcome = model.OutcomeFailed
		res.reason = err.Error()
	}
	return res
}

// Run drains the document worklist through the worker pool. A single
// document's failure never halts the run; budget refusals and cancellation
// drain already-dispatched work and terminate cleanly.
func (o *Orchestrator) Run(ctx context.Context, docs []Document) *RunOutput {
	out := &RunOutput{}
	if len(docs) == 0 {
		return out
	}

	pool := worker.NewPool(o.workers)
	pool.Start()

	for i, doc := range docs {
		pool.Submit(&extractJob{runCtx: ctx, orch: o, index: i, doc: doc})
	}

	results := pool.Wait()

	byIndex := make([]*extractResult, len(docs))
	for _, r := range results {
		res := r.(*extractResult)
		byIndex[res.index] = res
	}

	for i, res := range byIndex {
		if res == nil {
			// Pool shut down before the job ran; treat as cancelled.
			res = &extractResult{
				index:    i,
				sourceID: docs[i].Source.SourceID,
				outcome:  model.OutcomeSkippedCancel,
				reason:   "run cancelled before dispatch",
			}
		}
		out.Statuses = append(out.Statuses, model.DocumentStatus{
			SourceID: res.sourceID,
			Outcome:  res.outcome,
			Reason:   res.reason,
			Problems: len(res.records),
		})
		out.Records = append(out.Records, res.records...)
	}

	sort.SliceStable(out.Records, func(a, b int) bool {
		return out.Records[a].Seq < out.Records[b].Seq
	})

	return out
}
