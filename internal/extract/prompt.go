package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

const extractionPrompt = `You are extracting open scientific problems from a document.

Given the following text passages (from a review article or workshop report), extract each distinct open problem, knowledge gap, or unresolved question.

For each problem, provide:

1. The open problem or question as stated
2. The scientific domain (e.g., "protein engineering", "antimicrobial resistance", "gene regulation", "catalysis", "genomics")
3. The scope: "narrow" (a single specific question), "medium" (decomposes into 2-5 sub-questions), or "broad" (requires a research program)
4. If the scope is medium or narrow, decompose into specific sub-questions that could each be answered by a single study or experiment
5. For each sub-question, describe what kind of evidence or experiment would answer it
6. What disciplines or expertise areas are relevant

Ignore problems that are purely:
- Computational/algorithmic ("better models are needed")
- Policy/regulatory ("guidelines should be updated")
- Infrastructure ("more sequencing capacity is needed")
- Too broad to decompose ("the field needs a paradigm shift")

Respond with JSON only:
{
  "problems": [
    {
      "problem_statement": "the stated open problem",
      "domain": "scientific domain",
      "subdomain": "more specific area",
      "scope": "narrow|medium|broad",
      "sub_questions": [
        {
          "question": "specific sub-question",
          "evidence_needed": "what kind of study or experiment would answer this",
          "disciplines": ["relevant", "fields"],
          "estimated_complexity": "simple|medium|complex"
        }
      ],
      "original_text": "quote from source supporting this extraction",
      "related_keywords": ["key", "terms", "for", "searching"],
      "notes": "any caveats"
    }
  ],
  "meta": {
    "total_problems_found": 5,
    "decomposable_count": 3,
    "non_decomposable_reasons": ["too broad", "purely computational"]
  }
}

If there are no extractable problems meeting the criteria, return:
{"problems": [], "meta": {"total_problems_found": 0, "decomposable_count": 0, "non_decomposable_reasons": ["reason"]}}

Source document: {source_title}
Signal passages:
`

const reviewExtractionPrompt = `You are extracting open scientific problems from peer review comments.

Given the following text passages (from peer reviewer comments on a scientific preprint), extract each distinct experimental gap, unresolved question, or missing evidence that the reviewers identified.

Focus on:
- Experiments the reviewers say are missing or needed
- Controls that are absent
- Alternative explanations that haven't been ruled out
- Evidence that would be needed to support the authors' claims
- Methodological limitations that need to be addressed

For each problem, provide:

1. The open problem or experimental gap as identified by the reviewer
2. The scientific domain (e.g., "protein engineering", "cell biology", "biochemistry", "genomics")
3. The scope: "narrow" (a single specific question), "medium" (decomposes into 2-5 sub-questions), or "broad" (requires a research program)
4. If the scope is medium or narrow, decompose into specific sub-questions that could each be answered by a single study or experiment
5. For each sub-question, describe what kind of evidence or experiment would answer it
6. What disciplines or expertise areas are relevant

Ignore problems that are purely:
- Presentation issues ("the figures should be improved")
- Minor editorial concerns ("the writing is unclear")
- Computational/algorithmic ("better models are needed")
- Already addressed in author responses

Respond with JSON only:
{
  "problems": [
    {
      "problem_statement": "the stated open problem",
      "domain": "scientific domain",
      "subdomain": "more specific area",
      "scope": "narrow|medium|broad",
      "sub_questions": [
        {
          "question": "specific sub-question",
          "evidence_needed": "what kind of study or experiment would answer this",
          "disciplines": ["relevant", "fields"],
          "estimated_complexity": "simple|medium|complex"
        }
      ],
      "original_text": "quote from reviewer supporting this extraction",
      "related_keywords": ["key", "terms", "for", "searching"],
      "notes": "any caveats"
    }
  ],
  "meta": {
    "total_problems_found": 5,
    "decomposable_count": 3,
    "non_decomposable_reasons": ["too broad", "purely editorial"]
  }
}

If there are no extractable problems meeting the criteria, return:
{"problems": [], "meta": {"total_problems_found": 0, "decomposable_count": 0, "non_decomposable_reasons": ["reason"]}}

Reviewed preprint: {source_title}
Reviewer comments:
`

// BuildPrompt renders the extraction prompt for a source. Plain string
// replacement keeps the JSON braces in the template literal.
func BuildPrompt(title, sourceType, passagesText string) string {
	template := extractionPrompt
	if sourceType == "elife_review" {
		template = reviewExtractionPrompt
	}
	return strings.Replace(template, "{source_title}", title, 1) + passagesText
}

// BuildExtractionInput concatenates passages into the prompt body, bounded by
// maxChars. When the passages do not fit, whole passages are dropped
// lowest-category first so the most reliable signal survives the budget;
// a single oversized passage is truncated rather than dropped.
func BuildExtractionInput(passages []model.Passage, maxChars int) string {
	if len(passages) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = 8000 * 4
	}

	selected := selectWithinBudget(passages, maxChars)

	parts := make([]string, 0, len(selected))
	for i, p := range selected {
		section := p.Section
		if section == "" {
			section = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[Passage %d] (section: %s, signal: %s)\n%s",
			i+1, section, p.Category, p.Context))
	}
	combined := strings.Join(parts, "\n\n")

	if len(combined) > maxChars {
		combined = combined[:maxChars] + "\n[TRUNCATED]"
	}
	return combined
}

// selectWithinBudget keeps passages in position order but evicts
// lowest-category ones (latest first within a tier) until the estimated
// rendered size fits.
func selectWithinBudget(passages []model.Passage, maxChars int) []model.Passage {
	const perPassageOverhead = 48 // passage header plus separators

	total := 0
	for _, p := range passages {
		total += len(p.Context) + perPassageOverhead
	}
	if total <= maxChars {
		return passages
	}

	// Eviction order: lowest tier first, then latest position first.
	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := passages[order[a]].Category.Rank(), passages[order[b]].Category.Rank()
		if ra != rb {
			return ra < rb
		}
		return order[a] > order[b]
	})

	dropped := make(map[int]bool)
	for _, idx := range order {
		if total <= maxChars || len(dropped) == len(passages)-1 {
			break
		}
		dropped[idx] = true
		total -= len(passages[idx].Context) + perPassageOverhead
	}

	kept := make([]model.Passage, 0, len(passages)-len(dropped))
	for i, p := range passages {
		if !dropped[i] {
			kept = append(kept, p)
		}
	}
	return kept
}
