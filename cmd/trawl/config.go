package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/trawl/internal/retrieval"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective pipeline configuration",
	Long: `Config prints the pipeline configuration that retrieve would run
with: the defaults, overlaid with the given YAML file if any.`,
	Run: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg := retrieval.DefaultConfig()
	if configFile != "" {
		loaded, err := retrieval.LoadConfig(configFile)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		cfg = loaded
	}
	outputJSON(cfg)
}
