// Package main provides the trawl CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	// Missing .env is fine; the environment may carry the keys.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trawl",
	Short: "Evidence retrieval for biomedical research questions",
	Long: `trawl answers a biomedical research question with a ranked set of
evidence records pulled from PubMed, OpenAlex, Europe PMC, CrossRef and
ClinicalTrials.gov.

The question is optimized into database queries, results are fetched
concurrently, deduplicated, ranked by embedding similarity, screened
for relevance and optionally enriched with open-access full text. All
commands output JSON by default for easy integration with AI agents
and other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
