package cost

import (
	"fmt"
	"sync"
)

// Pricing is per-million-token pricing for one model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// modelPricing holds known per-model rates. Unknown models fall back to
// defaultPricing, which errs on the expensive side.
var modelPricing = map[string]Pricing{
	"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-3-7-sonnet-20250219": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
}

var defaultPricing = Pricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// PriceFor returns the pricing for a model, falling back to the default rate.
func PriceFor(model string) Pricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return defaultPricing
}

// Cost computes the dollar cost of one call.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*p.InputPerMTok + float64(outputTokens)*p.OutputPerMTok) / 1_000_000
}

// EstimateTokens approximates token count from character count (~4 chars per
// token).
func EstimateTokens(chars int) int {
	return chars / 4
}

// Tracker is the single shared spend counter for a run. Accounting is
// reserve-then-commit with a hard stop: a call whose worst-case estimate
// would cross the ceiling is never reserved, so recorded spend can never
// exceed the limit as long as estimates are worst-case.
type Tracker struct {
	mu       sync.Mutex
	limit    float64
	spent    float64
	reserved float64

	inputTokens  int
	outputTokens int
	calls        int
	byStage      map[string]float64
}

// NewTracker creates a tracker with the given spend ceiling in USD.
// A non-positive limit means unlimited.
func NewTracker(limitUSD float64) *Tracker {
	return &Tracker{
		limit:   limitUSD,
		byStage: make(map[string]float64),
	}
}

// TryReserve attempts to reserve budget for a call's worst-case estimated
// cost. It returns false, reserving nothing, when the estimate would push
// spent+reserved past the ceiling.
func (t *Tracker) TryReserve(estimated float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && t.spent+t.reserved+estimated > t.limit {
		return false
	}
	t.reserved += estimated
	return true
}

// Commit converts a reservation into recorded spend using the call's actual
// token usage. Failed calls still commit: they consumed quota.
func (t *Tracker) Commit(estimated float64, model string, inputTokens, outputTokens int, stage string) float64 {
	p := PriceFor(model)
	actual := p.Cost(inputTokens, outputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved -= estimated
	if t.reserved < 0 {
		t.reserved = 0
	}
	t.spent += actual
	t.inputTokens += inputTokens
	t.outputTokens += outputTokens
	t.calls++
	if stage != "" {
		t.byStage[stage] += actual
	}
	return actual
}

// Release returns a reservation unused (the call was never made).
func (t *Tracker) Release(estimated float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved -= estimated
	if t.reserved < 0 {
		t.reserved = 0
	}
}

// Spent returns the total recorded spend so far.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Limit returns the configured ceiling.
func (t *Tracker) Limit() float64 { return t.limit }

// Summary is a snapshot of the tracker for run records.
type Summary struct {
	TotalCost    float64            `json:"total_cost"`
	InputTokens  int                `json:"total_input_tokens"`
	OutputTokens int                `json:"total_output_tokens"`
	Calls        int                `json:"calls"`
	ByStage      map[string]float64 `json:"by_stage,omitempty"`
	Limit        float64            `json:"limit"`
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	byStage := make(map[string]float64, len(t.byStage))
	for k, v := range t.byStage {
		byStage[k] = v
	}
	return Summary{
		TotalCost:    t.spent,
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		Calls:        t.calls,
		ByStage:      byStage,
		Limit:        t.limit,
	}
}

// Status formats a one-line budget status.
func (t *Tracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit <= 0 {
		return fmt.Sprintf("Cost so far: $%.4f (no limit)", t.spent)
	}
	return fmt.Sprintf("Cost so far: $%.4f / $%.2f (%.0f%% of budget)",
		t.spent, t.limit, 100*t.spent/t.limit)
}
