package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/record"
)

const (
	filterBatchSize    = 8
	maxConcurrentCalls = 5
	batchTimeout       = 60 * time.Second

	defaultReason         = "high relevance score"
	includedByDefault     = "included by default"
	filterPromptTemplate  = `You are screening biomedical records for relevance to a research question.

Research question: %s

For each numbered record below, judge whether it provides evidence that bears on the question. Records about a different population, intervention or outcome are not relevant even when they share keywords.

%s

Respond with a JSON object of the form:
{"evaluations": [{"is_relevant": true, "reason": "one short sentence"}, ...]}

The evaluations array must have exactly %d entries, one per record, in order.`
)

type filterVerdicts struct {
	Evaluations []struct {
		IsRelevant bool   `json:"is_relevant"`
		Reason     string `json:"reason"`
	} `json:"evaluations"`
}

// filterByRelevance asks the model to screen candidates against the
// research question in batches, keeping records judged relevant. When
// the pool already fits within target the screen is skipped entirely.
// A failed batch keeps all of its records: losing evidence to a flaky
// model call is worse than passing a borderline record downstream.
func filterByRelevance(ctx context.Context, gen Generator, question string, candidates []record.CandidateRecord, target int, logger *zap.Logger) []record.CandidateRecord {
	if len(candidates) == 0 {
		return candidates
	}
	if len(candidates) <= target {
		passed := make([]record.CandidateRecord, len(candidates))
		copy(passed, candidates)
		for i := range passed {
			passed[i].RelevanceReason = defaultReason
		}
		return passed
	}

	type batch struct {
		start   int
		records []record.CandidateRecord
	}

	var batches []batch
	for start := 0; start < len(candidates); start += filterBatchSize {
		end := start + filterBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, batch{start: start, records: candidates[start:end]})
	}

	keep := make([]bool, len(candidates))
	reasons := make([]string, len(candidates))

	jobs := make(chan batch)
	var wg sync.WaitGroup

	workers := maxConcurrentCalls
	if len(batches) < workers {
		workers = len(batches)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				evaluateBatch(ctx, gen, question, b.records, keep[b.start:], reasons[b.start:], logger)
			}
		}()
	}

	for _, b := range batches {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	var relevant []record.CandidateRecord
	for i, r := range candidates {
		if !keep[i] {
			continue
		}
		r.RelevanceReason = reasons[i]
		relevant = append(relevant, r)
	}

	sortByScore(relevant)
	return relevant
}

// evaluateBatch screens one batch, writing verdicts into the keep and
// reason slices positionally. Any failure includes the whole batch.
func evaluateBatch(ctx context.Context, gen Generator, question string, records []record.CandidateRecord, keep []bool, reasons []string, logger *zap.Logger) {
	includeAll := func() {
		for i := range records {
			keep[i] = true
			reasons[i] = includedByDefault
		}
	}

	batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	prompt := fmt.Sprintf(filterPromptTemplate, question, formatBatch(records), len(records))

	var verdicts filterVerdicts
	if err := gen.CompleteJSON(batchCtx, prompt, &verdicts); err != nil {
		logger.Warn("relevance batch failed, including records", zap.Error(err))
		includeAll()
		return
	}
	if len(verdicts.Evaluations) != len(records) {
		logger.Warn("relevance batch returned wrong count, including records",
			zap.Int("want", len(records)),
			zap.Int("got", len(verdicts.Evaluations)))
		includeAll()
		return
	}

	for i, v := range verdicts.Evaluations {
		keep[i] = v.IsRelevant
		reason := strings.TrimSpace(v.Reason)
		if reason == "" {
			reason = defaultReason
		}
		reasons[i] = reason
	}
}

func formatBatch(records []record.CandidateRecord) string {
	var sb strings.Builder
	for i, r := range records {
		abstract := r.Abstract
		if len(abstract) > abstractPrefixLen {
			abstract = abstract[:abstractPrefixLen]
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, r.Title, abstract)
	}
	return sb.String()
}
