package retrieval

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/record"
)

// searchTask is one query against one source.
type searchTask struct {
	label    string
	searcher Searcher
	query    string
	max      int
}

// buildTasks expands the search plan into the fixed task list. Task
// order determines merge order, which in turn decides which duplicate
// survives deduplication, so the order is part of the pipeline's
// contract: identifier-rich sources come first.
func (p *Pipeline) buildTasks(plan record.SearchPlan) []searchTask {
	var tasks []searchTask

	add := func(label string, s Searcher, cfg SourceConfig, query string) {
		if s == nil || !cfg.Enabled || query == "" {
			return
		}
		tasks = append(tasks, searchTask{label: label, searcher: s, query: query, max: cfg.MaxResults})
	}

	concepts := plan.ConceptQuery()

	add("pubmed", p.pubmed, p.cfg.PubMed, plan.SourceQuery)
	add("pubmed-concepts", p.pubmed, p.cfg.PubMed, concepts)
	add("openalex", p.openalex, p.cfg.OpenAlex, plan.SemanticQuery)
	add("openalex-concepts", p.openalex, p.cfg.OpenAlex, concepts)
	add("europepmc", p.europepmc, p.cfg.EuropePMC, plan.SemanticQuery)
	add("crossref", p.crossref, p.cfg.CrossRef, plan.SemanticQuery)
	add("clinicaltrials", p.trials, p.cfg.ClinicalTrials, concepts)

	return tasks
}

// fetchAll runs every task concurrently and merges results in task
// order. A failing source logs a warning and contributes nothing; the
// pipeline degrades to whatever the healthy sources return.
func fetchAll(ctx context.Context, tasks []searchTask, logger *zap.Logger) []record.CandidateRecord {
	results := make([][]record.CandidateRecord, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task searchTask) {
			defer wg.Done()

			records, err := task.searcher.Search(ctx, task.query, task.max)
			if err != nil {
				logger.Warn("source search failed",
					zap.String("task", task.label),
					zap.Error(err))
				return
			}
			logger.Debug("source search completed",
				zap.String("task", task.label),
				zap.Int("records", len(records)))
			results[i] = records
		}(i, task)
	}
	wg.Wait()

	var merged []record.CandidateRecord
	for _, records := range results {
		merged = append(merged, records...)
	}
	return merged
}
