package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedResponse indicates the completion text failed structural
// parsing. The extraction client retries these, then escalates.
var ErrMalformedResponse = errors.New("malformed extraction response")

// RawSubQuestion is one sub-question as the model returned it, before
// validation. Unrecognized response fields are ignored, not errors.
type RawSubQuestion struct {
	Question       string   `json:"question"`
	EvidenceNeeded string   `json:"evidence_needed"`
	Disciplines    []string `json:"disciplines"`
	Complexity     string   `json:"estimated_complexity"`
}

// RawProblem is one extracted problem as the model returned it. The response
// is treated as an untyped tree: every field is optional here, and required
// fields are validated explicitly before a record is constructed.
type RawProblem struct {
	ProblemStatement string           `json:"problem_statement"`
	Domain           string           `json:"domain"`
	Subdomain        string           `json:"subdomain"`
	Scope            string           `json:"scope"`
	SubQuestions     []RawSubQuestion `json:"sub_questions"`
	OriginalText     string           `json:"original_text"`
	RelatedKeywords  []string         `json:"related_keywords"`
	Notes            string           `json:"notes"`
}

// ExtractionPayload is the top-level response shape.
type ExtractionPayload struct {
	Problems []RawProblem   `json:"problems"`
	Meta     ExtractionMeta `json:"meta"`
}

// ExtractionMeta carries the model's own accounting of what it found.
type ExtractionMeta struct {
	TotalProblemsFound     int      `json:"total_problems_found"`
	DecomposableCount      int      `json:"decomposable_count"`
	NonDecomposableReasons []string `json:"non_decomposable_reasons"`
}

var (
	fenceOpen    = regexp.MustCompile("^```(?:json)?\\s*\n?")
	fenceClose   = regexp.MustCompile("\n?```\\s*$")
	outerObject  = regexp.MustCompile(`(?s)\{.*\}`)
	problemBlock = regexp.MustCompile(`(?s)\{\s*"problem_statement".*?\n\s*\}`)
)

// ParseExtraction parses JSON from a completion, handling markdown fences.
// When the response was truncated at the token limit, it attempts to salvage
// complete problem objects from the partial JSON before giving up.
func ParseExtraction(text string, truncated bool) (*ExtractionPayload, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)
	}

	var payload ExtractionPayload
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return &payload, nil
	}

	// Try the outermost JSON object in case the model wrapped it in prose.
	if m := outerObject.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &payload); err == nil {
			return &payload, nil
		}
	}

	if !truncated {
		return nil, ErrMalformedResponse
	}

	// Truncated response: salvage complete problem objects from the partial
	// "problems" array.
	var salvaged []RawProblem
	for _, block := range problemBlock.FindAllString(text, -1) {
		var p RawProblem
		if err := json.Unmarshal([]byte(block), &p); err == nil {
			salvaged = append(salvaged, p)
		}
	}
	if len(salvaged) == 0 {
		return nil, ErrMalformedResponse
	}

	return &ExtractionPayload{
		Problems: salvaged,
		Meta: ExtractionMeta{
			TotalProblemsFound:     len(salvaged),
			DecomposableCount:      len(salvaged),
			NonDecomposableReasons: []string{"response_truncated"},
		},
	}, nil
}
