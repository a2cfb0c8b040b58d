package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrasilnikov/gapminer/internal/model"
	"github.com/mkrasilnikov/gapminer/internal/store"
)

var (
	listDB          string
	listDomain      string
	listScope       string
	listMinMentions int
	listRun         string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical problems from the database",
	Long: `List prints the canonical problem set, most-mentioned first,
optionally filtered by domain, scope, minimum mention count, or run.

Example:
  gapminer list --domain neuroscience
  gapminer list --scope narrow --min-mentions 2`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listDB, "db", "gapminer.db", "SQLite database path")
	listCmd.Flags().StringVar(&listDomain, "domain", "", "filter by domain")
	listCmd.Flags().StringVar(&listScope, "scope", "", "filter by scope (narrow, medium, broad)")
	listCmd.Flags().IntVar(&listMinMentions, "min-mentions", 0, "minimum mention count")
	listCmd.Flags().StringVar(&listRun, "run", "", "filter by run id")
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := store.Open(listDB)
	if err != nil {
		return err
	}
	defer st.Close()

	problems, err := st.ListProblems(store.ListFilter{
		Domain:      listDomain,
		Scope:       model.Scope(strings.ToLower(listScope)),
		MinMentions: listMinMentions,
		RunID:       listRun,
	})
	if err != nil {
		return err
	}

	if len(problems) == 0 {
		fmt.Println("No problems found.")
		return nil
	}

	for _, p := range problems {
		fmt.Printf("[%d] %s\n", p.ID, p.Statement)
		fmt.Printf("     domain: %s", p.Domain)
		if p.Subdomain != "" {
			fmt.Printf(" / %s", p.Subdomain)
		}
		fmt.Printf("  scope: %s  mentions: %d\n", p.Scope, p.MentionCount)
		if verbose {
			for _, sq := range p.SubQuestions {
				fmt.Printf("     - %s\n", sq.Question)
			}
		}
	}
	fmt.Printf("\n%d problems\n", len(problems))
	return nil
}
