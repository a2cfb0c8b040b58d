package model

import "time"

// Config is the full pipeline configuration.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Budget      BudgetConfig      `yaml:"budget"`
	Signal      SignalConfig      `yaml:"signal"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Cache       CacheConfig       `yaml:"cache"`
	Store       StoreConfig       `yaml:"store"`
	Output      OutputConfig      `yaml:"output"`
}

// LLMConfig configures the extraction provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // openai, anthropic, ollama
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key,omitempty"`
	BaseURL           string        `yaml:"base_url,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`         // per extraction call
	MaxTokens         int           `yaml:"max_tokens"`      // response cap
	MaxInputChars     int           `yaml:"max_input_chars"` // prompt passage budget (~4 chars per token)
	RetryAttempts     int           `yaml:"retry_attempts"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// BudgetConfig bounds total LLM spend for a run.
type BudgetConfig struct {
	MaxSpendUSD float64 `yaml:"max_spend_usd"`
	// Worst-case output assumed when estimating a call's cost before dispatch.
	EstimatedOutputTokens int `yaml:"estimated_output_tokens"`
}

// SignalConfig configures the passage filter.
type SignalConfig struct {
	PhraseFile      string `yaml:"phrase_file,omitempty"` // empty = built-in defaults
	MinParagraphLen int    `yaml:"min_paragraph_len"`
}

// DedupConfig configures clustering.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// ConcurrencyConfig bounds parallelism.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers"`
}

// CacheConfig configures the extraction response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir,omitempty"`
	TTL     time.Duration `yaml:"ttl"`
}

// StoreConfig locates the problem database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls run artifacts.
type OutputConfig struct {
	FeedPath string `yaml:"feed_path"`
	Verbose  bool   `yaml:"verbose"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "anthropic",
			Timeout:           90 * time.Second,
			MaxTokens:         8000,
			MaxInputChars:     8000 * 4, // ~8K tokens
			RetryAttempts:     3,
			RequestsPerSecond: 2,
		},
		Budget: BudgetConfig{
			MaxSpendUSD:           10.0,
			EstimatedOutputTokens: 2000,
		},
		Signal: SignalConfig{
			MinParagraphLen: 50,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.85,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Path: "gapminer.db",
		},
		Output: OutputConfig{
			FeedPath: "problems_feed.json",
		},
	}
}
