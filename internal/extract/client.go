package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mkrasilnikov/gapminer/internal/cache"
	"github.com/mkrasilnikov/gapminer/internal/cost"
	"github.com/mkrasilnikov/gapminer/internal/llm"
	"github.com/mkrasilnikov/gapminer/internal/model"
)

// Client is the rate- and budget-bounded extraction interface. It owns
// prompt construction, retry/backoff, malformed-response handling, and spend
// accounting against the shared tracker.
type Client struct {
	provider llm.Provider
	tracker  *cost.Tracker
	cache    *cache.ResponseCache // nil disables response caching
	cfg      model.LLMConfig

	estOutputTokens int
	backoffBase     time.Duration
	verbose         bool
}

// NewClient creates an extraction client. A nil respCache disables caching.
func NewClient(provider llm.Provider, tracker *cost.Tracker, respCache *cache.ResponseCache,
	cfg model.LLMConfig, budget model.BudgetConfig) *Client {
	estOut := budget.EstimatedOutputTokens
	if estOut <= 0 {
		estOut = 2000
	}
	return &Client{
		provider:        provider,
		tracker:         tracker,
		cache:           respCache,
		cfg:             cfg,
		estOutputTokens: estOut,
		backoffBase:     time.Second,
	}
}

// SetVerbose enables per-record warnings on stderr.
func (c *Client) SetVerbose(v bool) { c.verbose = v }

// BuildDocumentPrompt renders the full prompt for one document's passages.
func (c *Client) BuildDocumentPrompt(src model.Source, passages []model.Passage) string {
	title := src.Title
	if title == "" {
		title = src.SourceID
	}
	input := BuildExtractionInput(passages, c.cfg.MaxInputChars)
	return BuildPrompt(title, src.SourceType, input)
}

// Estimate returns the worst-case cost of one call for the given prompt:
// the prompt's token estimate plus the configured output allowance.
func (c *Client) Estimate(prompt string) float64 {
	p := cost.PriceFor(c.cfg.Model)
	return p.Cost(cost.EstimateTokens(len(prompt)), c.estOutputTokens)
}

// Extract converts a document's passages into problem records. Retries with
// exponential backoff on provider errors and malformed responses; exhausted
// retries surface an *ExtractionError. A syntactically valid response with
// zero usable records is a legitimate empty result, not an error. Every
// attempt that reaches the provider is committed to the spend tracker before
// the response is accepted — failed calls consumed quota too.
func (c *Client) Extract(ctx context.Context, src model.Source, passages []model.Passage) ([]model.Problem, error) {
	prompt := c.BuildDocumentPrompt(src, passages)

	if c.cache != nil {
		if payload, ok := c.cache.Lookup(src.SourceID, prompt); ok {
			return c.validate(src, payload), nil
		}
	}

	attempts := c.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		est := c.Estimate(prompt)
		if !c.tracker.TryReserve(est) {
			if attempt == 0 {
				return nil, fmt.Errorf("%s: %w", src.SourceID, ErrBudgetExceeded)
			}
			return nil, &ExtractionError{SourceID: src.SourceID, Cause: ErrBudgetExceeded}
		}

		resp, err := c.complete(prompt)
		if err != nil {
			// The call was dispatched; its input still counted against quota.
			c.tracker.Commit(est, c.cfg.Model, cost.EstimateTokens(len(prompt)), 0, "extract")
			lastErr = err
			continue
		}

		// Spend is recorded before the response is accepted.
		c.tracker.Commit(est, resp.Model, resp.InputTokens, resp.OutputTokens, "extract")

		payload, perr := llm.ParseExtraction(resp.Text, resp.Truncated)
		if perr != nil {
			if c.verbose {
				fmt.Fprintf(os.Stderr, "Warning: %s: malformed extraction response (attempt %d/%d)\n",
					src.SourceID, attempt+1, attempts)
			}
			lastErr = perr
			continue
		}

		if c.cache != nil {
			_ = c.cache.Store(src.SourceID, prompt, payload)
		}

		return c.validate(src, payload), nil
	}

	return nil, &ExtractionError{SourceID: src.SourceID, Cause: lastErr}
}

// complete dispatches one provider call. It is detached from the run
// context: cancellation prevents new attempts (the retry loop checks ctx)
// but lets a dispatched call run to completion under its own timeout.
func (c *Client) complete(prompt string) (*llm.CompletionResponse, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	callCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.provider.Complete(callCtx, llm.CompletionRequest{
		Prompt:    prompt,
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
	})
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := c.backoffBase << uint(attempt) // base, 2*base, 4*base, ...
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// validate applies the strict-parse-then-validate boundary: any record
// missing a required field (problem_statement, domain, scope) is dropped
// individually with a warning.
func (c *Client) validate(src model.Source, payload *llm.ExtractionPayload) []model.Problem {
	problems := make([]model.Problem, 0, len(payload.Problems))
	for i, raw := range payload.Problems {
		statement := strings.TrimSpace(raw.ProblemStatement)
		domain := strings.TrimSpace(raw.Domain)
		scope := parseScope(raw.Scope)

		if statement == "" || domain == "" || scope == "" {
			if c.verbose {
				fmt.Fprintf(os.Stderr, "Warning: %s: dropping record %d, missing required field\n",
					src.SourceID, i+1)
			}
			continue
		}

		p := model.Problem{
			SourceID:     src.SourceID,
			Statement:    statement,
			Domain:       domain,
			Subdomain:    strings.TrimSpace(raw.Subdomain),
			Scope:        scope,
			OriginalText: raw.OriginalText,
			Keywords:     raw.RelatedKeywords,
			Notes:        raw.Notes,
		}
		for _, sq := range raw.SubQuestions {
			if strings.TrimSpace(sq.Question) == "" {
				continue
			}
			p.SubQuestions = append(p.SubQuestions, model.SubQuestion{
				Question:       strings.TrimSpace(sq.Question),
				EvidenceNeeded: sq.EvidenceNeeded,
				Disciplines:    sq.Disciplines,
				Complexity:     model.Complexity(strings.ToLower(sq.Complexity)),
				SourceID:       src.SourceID,
			})
		}
		problems = append(problems, p)
	}
	return problems
}

func parseScope(s string) model.Scope {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "narrow":
		return model.ScopeNarrow
	case "medium":
		return model.ScopeMedium
	case "broad":
		return model.ScopeBroad
	default:
		return ""
	}
}
