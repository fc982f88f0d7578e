// Package retrieval implements the evidence retrieval pipeline: query
// optimization, concurrent multi-source search, deduplication,
// embedding-based ranking with trial quotas, model-based relevance
// screening and full-text enrichment.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/fulltext"
	"github.com/matsen/trawl/internal/progress"
	"github.com/matsen/trawl/internal/record"
	"github.com/matsen/trawl/internal/sources"
)

// ErrNoCandidates indicates that no source returned a usable record
// for the question.
var ErrNoCandidates = errors.New("no candidate records found")

// minTopK is the floor for the ranking cutoff so the relevance screen
// always sees a reasonable pool.
const minTopK = 75

// Generator produces structured model output.
type Generator interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

// Embedder produces embedding vectors for a batch of texts.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher queries one bibliographic source.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error)
}

// TextProvider retrieves full document text for a record.
type TextProvider interface {
	FullText(ctx context.Context, pmid, doi, pmcid string) (*fulltext.Result, error)
}

// Stats summarizes what each pipeline stage did.
type Stats struct {
	Fetched  int           `json:"fetched"`
	Unique   int           `json:"unique"`
	Screened int           `json:"screened"`
	Kept     int           `json:"kept"`
	Enriched int           `json:"enriched"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Result is a completed retrieval run.
type Result struct {
	Question string                   `json:"question"`
	Plan     record.SearchPlan        `json:"plan"`
	Records  []record.CandidateRecord `json:"records"`
	Stats    Stats                    `json:"stats"`
}

// Pipeline wires the retrieval stages together. Construct with
// NewPipeline; the zero value is not usable.
type Pipeline struct {
	cfg      Config
	gen      Generator
	embedder Embedder

	pubmed    Searcher
	openalex  Searcher
	europepmc Searcher
	crossref  Searcher
	trials    Searcher

	textProvider TextProvider
	logger       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSearchers replaces the default source adapters (for testing).
// Nil entries disable the corresponding source.
func WithSearchers(pubmed, openalex, europepmc, crossref, trials Searcher) Option {
	return func(p *Pipeline) {
		p.pubmed = pubmed
		p.openalex = openalex
		p.europepmc = europepmc
		p.crossref = crossref
		p.trials = trials
	}
}

// WithTextProvider replaces the default full-text service.
func WithTextProvider(tp TextProvider) Option {
	return func(p *Pipeline) {
		p.textProvider = tp
	}
}

// NewPipeline creates a pipeline with production source adapters.
func NewPipeline(cfg Config, gen Generator, embedder Embedder, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	contact := sources.WithContactEmail(cfg.ContactEmail)
	p := &Pipeline{
		cfg:       cfg,
		gen:       gen,
		embedder:  embedder,
		pubmed:    sources.NewPubMed(contact),
		openalex:  sources.NewOpenAlex(contact),
		europepmc: sources.NewEuropePMC(contact),
		crossref:  sources.NewCrossRef(contact),
		trials:    sources.NewClinicalTrials(contact),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.textProvider == nil && cfg.IncludeFullText {
		p.textProvider = fulltext.NewService(cfg.ContactEmail)
	}
	return p, nil
}

// Retrieve runs the full pipeline for a research question, reporting
// stage transitions to the sink.
func (p *Pipeline) Retrieve(ctx context.Context, question string, sink progress.Sink) (*Result, error) {
	if sink == nil {
		sink = progress.Discard()
	}
	start := time.Now()

	sink.Publish(progress.NewEvent(progress.StepOptimizing, "Optimizing search query", ""))
	plan, err := optimizeQuery(ctx, p.gen, question)
	if err != nil {
		// No meaningful retrieval can happen without a plan; callers see
		// the same empty-result outcome as an empty fetch.
		return nil, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}
	p.logger.Info("query optimized",
		zap.String("source_query", plan.SourceQuery),
		zap.Int("concepts", len(plan.KeyConcepts)))

	tasks := p.buildTasks(plan)
	sink.Publish(progress.NewEvent(progress.StepSearching, "Searching bibliographic sources",
		fmt.Sprintf("%d queries", len(tasks))))
	fetched := fetchAll(ctx, tasks, p.logger)
	if len(fetched) == 0 {
		return nil, ErrNoCandidates
	}

	sink.Publish(progress.NewEvent(progress.StepDeduplicating, "Removing duplicate records",
		fmt.Sprintf("%d fetched", len(fetched))))
	unique := Deduplicate(fetched)

	sink.Publish(progress.NewEvent(progress.StepRanking, "Ranking by relevance",
		fmt.Sprintf("%d unique", len(unique))))
	ranked := rankCandidates(ctx, p.embedder, plan.SemanticQuery, unique, p.cfg.ClinicalTrialBoost, p.logger)
	screened := selectTop(ranked, p.topK(), p.cfg.MinClinicalTrials, 0)

	sink.Publish(progress.NewEvent(progress.StepFiltering, "Screening for relevance",
		fmt.Sprintf("%d candidates", len(screened))))
	relevant := filterByRelevance(ctx, p.gen, question, screened, p.cfg.MaxFinalRecords, p.logger)
	if len(relevant) == 0 {
		return nil, ErrNoCandidates
	}
	final := selectTop(relevant, p.cfg.MaxFinalRecords, p.cfg.MinClinicalTrials, p.cfg.MinPapers)

	enriched := 0
	if p.cfg.IncludeFullText && p.textProvider != nil {
		sink.Publish(progress.NewEvent(progress.StepEnriching, "Retrieving full text",
			fmt.Sprintf("top %d records", maxEnriched)))
		enrichWithFullText(ctx, p.textProvider, final, p.logger)
		for _, r := range final {
			if r.HasFullText {
				enriched++
			}
		}
	}

	sink.Publish(progress.NewEvent(progress.StepComplete, "Retrieval complete",
		fmt.Sprintf("%d records", len(final))))

	return &Result{
		Question: question,
		Plan:     plan,
		Records:  final,
		Stats: Stats{
			Fetched:  len(fetched),
			Unique:   len(unique),
			Screened: len(screened),
			Kept:     len(final),
			Enriched: enriched,
			Elapsed:  time.Since(start),
		},
	}, nil
}

// topK is the ranking cutoff fed to the relevance screen, sized so the
// screen has room to reject without starving the final selection.
func (p *Pipeline) topK() int {
	k := 3 * p.cfg.MaxFinalRecords
	if k < minTopK {
		k = minTopK
	}
	return k
}
