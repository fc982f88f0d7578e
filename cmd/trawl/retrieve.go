package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/fulltext"
	"github.com/matsen/trawl/internal/llm"
	"github.com/matsen/trawl/internal/progress"
	"github.com/matsen/trawl/internal/retrieval"
)

var (
	configPath string
	maxRecords int
	noFullText bool
	timeout    time.Duration
	cachePath  string
	verbose    bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <question>",
	Short: "Retrieve evidence records for a research question",
	Long: `Retrieve runs the full evidence pipeline for a research question and
prints the ranked records as JSON.

Requires OPENAI_API_KEY in the environment or a .env file. An
OpenAI-compatible endpoint can be substituted with OPENAI_BASE_URL.`,
	Args: cobra.ExactArgs(1),
	Run:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	retrieveCmd.Flags().IntVar(&maxRecords, "max", 0, "Maximum records to return (overrides config)")
	retrieveCmd.Flags().BoolVar(&noFullText, "no-fulltext", false, "Skip full-text enrichment")
	retrieveCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall pipeline timeout")
	retrieveCmd.Flags().StringVar(&cachePath, "fulltext-cache", "", "Path to a SQLite full-text cache")
	retrieveCmd.Flags().BoolVar(&verbose, "verbose", false, "Log pipeline internals to stderr")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	question := args[0]

	cfg, err := loadRetrieveConfig()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		exitWithError(ExitConfigError, "OPENAI_API_KEY is not set")
	}

	var llmOpts []llm.Option
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(baseURL))
	}
	client := llm.NewClient(apiKey, llmOpts...)

	logger := buildLogger()
	defer logger.Sync()

	opts := []retrieval.Option{retrieval.WithLogger(logger)}
	if cachePath != "" && cfg.IncludeFullText {
		cache, err := fulltext.OpenCache(cachePath)
		if err != nil {
			exitWithError(ExitConfigError, "opening full-text cache: %v", err)
		}
		defer cache.Close()
		opts = append(opts, retrieval.WithTextProvider(
			fulltext.NewService(cfg.ContactEmail, fulltext.WithCache(cache))))
	}

	pipeline, err := retrieval.NewPipeline(cfg, client, client, opts...)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sink := progress.Func(func(e progress.Event) {
		if e.Detail != "" {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s (%s)\n", e.Percent, e.Message, e.Detail)
			return
		}
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", e.Percent, e.Message)
	})

	result, err := pipeline.Retrieve(ctx, question, sink)
	if errors.Is(err, retrieval.ErrNoCandidates) {
		if humanOutput {
			fmt.Println("No records found.")
		} else {
			outputJSON(NoResultsResponse{
				Question: question,
				Records:  []any{},
				Message:  "no candidate records found",
			})
		}
		os.Exit(ExitNoResults)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		printResultHuman(result)
		return
	}
	outputJSON(result)
}

func loadRetrieveConfig() (retrieval.Config, error) {
	cfg := retrieval.DefaultConfig()
	if configPath != "" {
		loaded, err := retrieval.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if maxRecords > 0 {
		cfg.MaxFinalRecords = maxRecords
	}
	if noFullText {
		cfg.IncludeFullText = false
	}
	return cfg, cfg.Validate()
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.OutputPaths = []string{"stderr"}
	logger, err := logCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
