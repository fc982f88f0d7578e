package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matsen/trawl/internal/retrieval"
)

// Title truncation length for human-readable listings.
const listTitleMaxLen = 78

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NoResultsResponse is returned when no source produced a usable record.
type NoResultsResponse struct {
	Question string `json:"question"`
	Records  []any  `json:"records"`
	Message  string `json:"message"`
}

// printResultHuman prints a retrieval result in human-readable format.
func printResultHuman(result *retrieval.Result) {
	fmt.Printf("Question: %s\n", result.Question)
	fmt.Printf("Query:    %s\n\n", result.Plan.SourceQuery)

	for i, r := range result.Records {
		marker := " "
		if r.IsTrial() {
			marker = "T"
		}
		fmt.Printf("%2d. [%.3f]%s %s\n", i+1, r.RelevanceScore, marker, truncateString(r.Title, listTitleMaxLen))
		line := fmt.Sprintf("    %s (%d)", r.SourceName, r.Year)
		if r.CitationCount > 0 {
			line += fmt.Sprintf(", %d citations", r.CitationCount)
		}
		if r.HasFullText {
			line += fmt.Sprintf(", full text via %s", r.FullTextSource)
		}
		fmt.Println(line)
		if r.RelevanceReason != "" {
			fmt.Printf("    %s\n", r.RelevanceReason)
		}
		fmt.Println()
	}

	fmt.Printf("%d records (%d fetched, %d unique, %d with full text) in %s\n",
		result.Stats.Kept, result.Stats.Fetched, result.Stats.Unique,
		result.Stats.Enriched, formatDuration(result.Stats.Elapsed))
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
