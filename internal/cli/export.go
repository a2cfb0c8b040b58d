package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrasilnikov/gapminer/internal/pipeline"
	"github.com/mkrasilnikov/gapminer/internal/store"
)

var (
	exportDB  string
	exportOut string
	exportRun string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the canonical problem set as a JSON feed",
	Long: `Export regenerates the JSON problem feed from the database without
running the pipeline. By default it covers every run; pass --run to
export a single run's problems.

Example:
  gapminer export --db gapminer.db --out problems_feed.json
  gapminer export --run 20260828_093000`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportDB, "db", "gapminer.db", "SQLite database path")
	exportCmd.Flags().StringVar(&exportOut, "out", "problems_feed.json", "output JSON feed path")
	exportCmd.Flags().StringVar(&exportRun, "run", "all", "run id to export, or \"all\"")
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := store.Open(exportDB)
	if err != nil {
		return err
	}
	defer st.Close()

	feed, err := pipeline.BuildFeed(st, exportRun)
	if err != nil {
		return err
	}
	if err := pipeline.WriteFeed(feed, exportOut); err != nil {
		return err
	}

	fmt.Printf("Exported %d problems to %s\n", len(feed.Problems), exportOut)
	return nil
}
