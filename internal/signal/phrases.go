package signal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PhraseConfig is the versioned signal phrase configuration: three positive
// tiers, a negative tier that vetoes matches, and the stop-phrases used by
// statement normalization. Changing signal definitions is a config edit,
// not a code change.
type PhraseConfig struct {
	Version         int      `yaml:"version"`
	CategoryA       []string `yaml:"category_a"`
	CategoryB       []string `yaml:"category_b"`
	CategoryC       []string `yaml:"category_c"`
	NegativeFilters []string `yaml:"negative_filters"`
	StopPhrases     []string `yaml:"stop_phrases"`
}

// LoadPhraseConfig reads a phrase configuration file. An unparsable file is a
// startup error for the whole run.
func LoadPhraseConfig(path string) (*PhraseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase config: %w", err)
	}

	var cfg PhraseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse phrase config %s: %w", path, err)
	}

	if len(cfg.CategoryA)+len(cfg.CategoryB)+len(cfg.CategoryC) == 0 {
		return nil, fmt.Errorf("phrase config %s: no positive phrases defined", path)
	}

	return &cfg, nil
}

// DefaultPhraseConfig returns the built-in phrase tiers used when no config
// file is supplied.
func DefaultPhraseConfig() *PhraseConfig {
	return &PhraseConfig{
		Version: 1,
		CategoryA: []string{
			"remains unknown",
			"remains unclear",
			"remains poorly understood",
			"it is not known",
			"it is unknown whether",
			"open question",
			"open problem",
			"unresolved question",
			"has not been determined",
			"has not been established",
			"yet to be elucidated",
			"knowledge gap",
		},
		CategoryB: []string{
			"further research is needed",
			"further studies are needed",
			"future research should",
			"future studies should",
			"more work is needed",
			"warrants further investigation",
			"requires further investigation",
			"remains to be seen",
		},
		CategoryC: []string{
			"poorly characterized",
			"incompletely understood",
			"not fully understood",
			"little is known",
			"limited understanding",
			"lack of evidence",
			"conflicting results",
			"inconsistent findings",
		},
		NegativeFilters: []string{
			"funding mechanism",
			"funding opportunities",
			"grant support",
			"beyond the scope of this review",
			"will be discussed elsewhere",
			"see supplementary",
		},
		StopPhrases: []string{
			"it remains unknown whether",
			"it remains unclear whether",
			"it is not known whether",
			"it is unknown whether",
			"the question of whether",
			"the question of",
			"an open question is",
			"an open problem is",
			"a key open question is",
		},
	}
}
