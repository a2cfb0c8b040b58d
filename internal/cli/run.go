package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrasilnikov/gapminer/internal/ingest"
	"github.com/mkrasilnikov/gapminer/internal/llm"
	"github.com/mkrasilnikov/gapminer/internal/model"
	"github.com/mkrasilnikov/gapminer/internal/pipeline"
	sigfilter "github.com/mkrasilnikov/gapminer/internal/signal"
	"github.com/mkrasilnikov/gapminer/internal/store"
)

var (
	registryPath string
	sourceDir    string
	sourceType   string
	dbPath       string
	feedPath     string
	phraseFile   string
	llmProvider  string
	llmModel     string
	maxSpend     float64
	workers      int
	callTimeout  time.Duration
	noCache      bool
	noFeed       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extraction pipeline over a batch of documents",
	Long: `Run ingests a batch of documents, filters them for open-problem
signal passages, extracts structured problem records with an LLM,
deduplicates the records into the canonical problem set, and exports
a JSON feed for the run.

Documents come from a YAML source registry (--registry) or from a
directory of .txt/.md/.html files (--dir). Sources already present in
the database are skipped, so re-running over the same batch is cheap.

Example:
  gapminer run --registry sources.yaml
  gapminer run --dir ./papers --type review_article --max-spend 5
  gapminer run --registry sources.yaml --provider openai --model gpt-4o-mini`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Input flags
	runCmd.Flags().StringVar(&registryPath, "registry", "", "YAML source registry path")
	runCmd.Flags().StringVar(&sourceDir, "dir", "", "directory of documents (alternative to --registry)")
	runCmd.Flags().StringVar(&sourceType, "type", "review_article", "source type for --dir documents")
	runCmd.Flags().StringVar(&phraseFile, "phrases", "", "signal phrase config (default: built-in phrase lists)")

	// Output flags
	runCmd.Flags().StringVar(&dbPath, "db", "gapminer.db", "SQLite database path")
	runCmd.Flags().StringVar(&feedPath, "feed", "problems_feed.json", "output JSON feed path")
	runCmd.Flags().BoolVar(&noFeed, "no-feed", false, "skip the JSON feed export")

	// LLM flags
	runCmd.Flags().StringVar(&llmProvider, "provider", "anthropic", "LLM provider (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&llmModel, "model", "", "LLM model name (default: provider default)")
	runCmd.Flags().Float64Var(&maxSpend, "max-spend", 10.0, "LLM spend ceiling in USD for this run")
	runCmd.Flags().IntVar(&workers, "workers", 4, "concurrent extraction calls")
	runCmd.Flags().DurationVar(&callTimeout, "timeout", 90*time.Second, "per extraction call timeout")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction response cache")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if (registryPath == "") == (sourceDir == "") {
		return fmt.Errorf("exactly one of --registry or --dir is required")
	}

	// Build configuration from flags
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	cfg.LLM.Timeout = callTimeout
	cfg.Budget.MaxSpendUSD = maxSpend
	cfg.Concurrency.Workers = workers
	cfg.Cache.Enabled = !noCache
	cfg.Store.Path = dbPath
	cfg.Output.FeedPath = feedPath
	cfg.Output.Verbose = verbose
	cfg.Signal.PhraseFile = phraseFile

	// Get API key from environment
	switch llmProvider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return err
	}

	phrases := sigfilter.DefaultPhraseConfig()
	if phraseFile != "" {
		phrases, err = sigfilter.LoadPhraseConfig(phraseFile)
		if err != nil {
			return err
		}
	}

	sources, err := loadSources()
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d sources\n", len(sources))
		fmt.Fprintf(os.Stderr, "Spend ceiling: $%.2f\n", maxSpend)
		fmt.Fprintln(os.Stderr)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	// Ctrl-C stops new extraction calls; in-flight calls drain and the
	// run still persists what it got.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, phrases, provider, st)
	report, err := p.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("run %s: %w", report.Run.RunID, err)
	}

	printRunSummary(report)

	if !noFeed {
		feed, err := pipeline.BuildFeed(st, report.Run.RunID)
		if err != nil {
			return fmt.Errorf("build feed: %w", err)
		}
		if err := pipeline.WriteFeed(feed, cfg.Output.FeedPath); err != nil {
			return err
		}
		fmt.Printf("Feed written: %s\n", cfg.Output.FeedPath)
	}

	return nil
}

func loadSources() ([]model.Source, error) {
	if registryPath != "" {
		reg, err := ingest.LoadRegistry(registryPath)
		if err != nil {
			return nil, err
		}
		return ingest.LoadFromRegistry(registryPath, reg)
	}
	return ingest.LoadDirectory(sourceDir, sourceType)
}

func printRunSummary(report *pipeline.RunReport) {
	c := report.Run.Counters
	fmt.Printf("Run %s finished in %s\n", report.Run.RunID,
		report.Run.FinishedAt.Sub(report.Run.StartedAt).Round(time.Second))
	fmt.Printf("  Sources scanned:      %d\n", c.SourcesScanned)
	fmt.Printf("  Signal passages:      %d\n", c.SignalPassages)
	fmt.Printf("  Problems extracted:   %d\n", c.ProblemsExtracted)
	fmt.Printf("  Problems after dedup: %d\n", c.ProblemsAfterDedup)
	fmt.Printf("  Sub-questions:        %d\n", c.SubQuestions)
	fmt.Printf("  Total cost:           $%.4f\n", report.Run.TotalCost)

	var failed, skipped int
	for _, d := range report.Run.Documents {
		switch d.Outcome {
		case model.OutcomeFailed:
			failed++
		case model.OutcomeSkippedBudget, model.OutcomeSkippedCancel, model.OutcomeSkippedResumed:
			skipped++
		}
	}
	if failed > 0 || skipped > 0 {
		fmt.Printf("  Documents failed/skipped: %d/%d\n", failed, skipped)
	}
	if verbose {
		for _, d := range report.Run.Documents {
			if d.Outcome == model.OutcomeExtracted {
				continue
			}
			fmt.Fprintf(os.Stderr, "  %s: %s", d.SourceID, d.Outcome)
			if d.Reason != "" {
				fmt.Fprintf(os.Stderr, " (%s)", d.Reason)
			}
			fmt.Fprintln(os.Stderr)
		}
	}
}
