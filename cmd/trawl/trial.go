package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/trawl/internal/sources"
)

var trialCmd = &cobra.Command{
	Use:   "trial <nct-id>",
	Short: "Fetch a single trial record from ClinicalTrials.gov",
	Args:  cobra.ExactArgs(1),
	Run:   runTrial,
}

func init() {
	rootCmd.AddCommand(trialCmd)
}

func runTrial(cmd *cobra.Command, args []string) {
	nctID := strings.ToUpper(args[0])
	if !strings.HasPrefix(nctID, "NCT") {
		exitWithError(ExitError, "expected an NCT identifier, got %q", args[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ct := sources.NewClinicalTrials()
	trial, err := ct.FetchTrial(ctx, nctID)
	if err != nil {
		exitWithError(ExitError, "fetching trial: %v", err)
	}

	if humanOutput {
		fmt.Printf("%s (%d)\n%s\n\n%s\n", trial.Title, trial.Year, trial.URL, trial.Abstract)
		return
	}
	outputJSON(trial)
}
