package model

import "time"

// RunCounters are the per-stage counts a completed run always reports.
type RunCounters struct {
	SourcesScanned     int `json:"sources_scanned"`
	SignalPassages     int `json:"signal_passages"`
	ProblemsExtracted  int `json:"problems_extracted"`
	ProblemsAfterDedup int `json:"problems_after_dedup"`
	SubQuestions       int `json:"sub_questions"`
}

// PipelineRun records one execution. Write-once after completion.
type PipelineRun struct {
	RunID       string           `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	SourceTypes []string         `json:"source_types"`
	Counters    RunCounters      `json:"counters"`
	TotalCost   float64          `json:"total_cost"`
	Documents   []DocumentStatus `json:"documents,omitempty"`
	Config      string           `json:"config,omitempty"` // YAML snapshot of the effective configuration
}

// GenerateRunID returns a timestamp-based run identifier.
func GenerateRunID() string {
	return time.Now().Format("20060102_150405")
}
