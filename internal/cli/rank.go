package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrasilnikov/gapminer/internal/rank"
	"github.com/mkrasilnikov/gapminer/internal/store"
)

var (
	rankDB  string
	rankOut string
	rankTop int
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stored problems by experimental feasibility",
	Long: `Rank runs a go/no-go feasibility screen over the canonical problem
set: each sub-question is gated on bench-testability, then scored on
biosafety, technique accessibility, reagent sourcing, cost, protocol
readiness, and tractability. Problems are bucketed go_now,
needs_specification, or needs_repositioning by their best sub-question.

Example:
  gapminer rank --db gapminer.db --out feasibility_rankings.json
  gapminer rank --top 10`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&rankDB, "db", "gapminer.db", "SQLite database path")
	rankCmd.Flags().StringVar(&rankOut, "out", "feasibility_rankings.json", "output JSON path")
	rankCmd.Flags().IntVar(&rankTop, "top", 20, "number of top candidates to print")
}

func runRank(cmd *cobra.Command, args []string) error {
	st, err := store.Open(rankDB)
	if err != nil {
		return err
	}
	defer st.Close()

	problems, err := st.ListProblems(store.ListFilter{})
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Println("No problems to rank.")
		return nil
	}

	rankings := rank.NewScorer().RankProblems(problems)
	if err := rank.WriteRankings(rankings, rankOut); err != nil {
		return err
	}

	sum := rankings.Summary
	fmt.Printf("Ranked %d problems: %d go now, %d need specification, %d need repositioning\n",
		sum.TotalProblems, sum.GoNow, sum.NeedsSpecification, sum.NeedsRepositioning)

	shown := 0
	for _, p := range rankings.Problems {
		if p.Decision != rank.DecisionGoNow || shown >= rankTop {
			break
		}
		shown++
		fmt.Printf("%2d. [%.3f %s] %s\n", shown, p.BestScore, p.BestTier, p.Statement)
		if verbose && len(p.SubQuestionScores) > 0 {
			best := p.SubQuestionScores[0]
			fmt.Printf("      best sub-question: %s\n", best.Question)
		}
	}
	fmt.Printf("Wrote rankings to %s\n", rankOut)
	return nil
}
