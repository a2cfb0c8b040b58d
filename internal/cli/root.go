package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.2.0"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "gapminer",
	Version: version,
	Short:   "Gapminer - open scientific problem extraction",
	Long: `Gapminer mines open scientific problems from research documents.

It scans review articles, grant reports, and peer reviews for passages
that signal unsolved problems, asks an LLM to extract structured problem
records from those passages, deduplicates the records into a canonical
problem set, and maintains that set in a local SQLite database.

Gapminer catalogs what the literature says is unsolved; it does not
judge whether a problem is worth solving.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.gapminer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires the configuration hierarchy: an explicit --config file
// wins, otherwise ~/.gapminer/config.yaml is searched; GAPMINER_* environment
// variables override either.
func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".gapminer"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GAPMINER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
