package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/record"
)

const (
	// maxCitationBoost caps the citation contribution so heavily cited
	// papers cannot swamp semantic similarity.
	maxCitationBoost = 0.2
	citationDivisor  = 1000.0

	reviewBoost = 0.1

	// abstractPrefixLen is how much of the abstract joins the title in
	// the text that gets embedded.
	abstractPrefixLen = 500
)

// rankCandidates scores every candidate against the semantic query and
// returns them sorted best-first. The score is cosine similarity plus
// citation, review and clinical-trial boosts. When embedding fails the
// ranking degrades to boost-only scores rather than aborting the run.
func rankCandidates(ctx context.Context, embedder Embedder, semanticQuery string, candidates []record.CandidateRecord, trialBoost float64, logger *zap.Logger) []record.CandidateRecord {
	ranked := make([]record.CandidateRecord, len(candidates))
	copy(ranked, candidates)

	similarities, err := embedSimilarities(ctx, embedder, semanticQuery, ranked)
	if err != nil {
		logger.Warn("embedding failed, ranking on boosts only", zap.Error(err))
		similarities = make([]float64, len(ranked))
	}

	for i := range ranked {
		ranked[i].RelevanceScore = similarities[i] + scoreBoosts(ranked[i], trialBoost)
	}

	sortByScore(ranked)
	return ranked
}

// embedSimilarities embeds the query and every candidate in a single
// batched call and returns per-candidate cosine similarities.
func embedSimilarities(ctx context.Context, embedder Embedder, query string, candidates []record.CandidateRecord) ([]float64, error) {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, r := range candidates {
		texts = append(texts, embeddingText(r))
	}

	vectors, err := embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	queryVec := vectors[0]
	similarities := make([]float64, len(candidates))
	for i, vec := range vectors[1:] {
		similarities[i] = cosineSimilarity(queryVec, vec)
	}
	return similarities, nil
}

func embeddingText(r record.CandidateRecord) string {
	abstract := r.Abstract
	if len(abstract) > abstractPrefixLen {
		abstract = abstract[:abstractPrefixLen]
	}
	return r.Title + ". " + abstract
}

func scoreBoosts(r record.CandidateRecord, trialBoost float64) float64 {
	boost := math.Min(float64(r.CitationCount)/citationDivisor, maxCitationBoost)
	if r.IsReview {
		boost += reviewBoost
	}
	if r.IsTrial() {
		boost += trialBoost
	}
	return boost
}

// sortByScore orders records best-first with a deterministic tie-break
// so equal scores never reorder between runs.
func sortByScore(records []record.CandidateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].RelevanceScore != records[j].RelevanceScore {
			return records[i].RelevanceScore > records[j].RelevanceScore
		}
		if records[i].ExternalID != records[j].ExternalID {
			return records[i].ExternalID < records[j].ExternalID
		}
		return records[i].Title < records[j].Title
	})
}

// selectTop takes the best topK records while guaranteeing minimum
// counts of clinical trials and papers when enough exist anywhere in
// the ranking. Records promoted from below the cutoff displace the
// lowest-scoring records of the other kind.
func selectTop(ranked []record.CandidateRecord, topK, minTrials, minPapers int) []record.CandidateRecord {
	if topK > len(ranked) {
		topK = len(ranked)
	}
	selected := make([]record.CandidateRecord, topK)
	copy(selected, ranked[:topK])

	isTrial := record.CandidateRecord.IsTrial
	isPaper := func(r record.CandidateRecord) bool { return !r.IsTrial() }

	promoteKind(selected, ranked[topK:], minTrials, isTrial)
	promoteKind(selected, ranked[topK:], minPapers, isPaper)

	sortByScore(selected)
	return selected
}

// promoteKind replaces the selection's worst records of the other kind
// with the best below-cutoff records of the wanted kind until the
// minimum is met or candidates run out.
func promoteKind(selected, rest []record.CandidateRecord, min int, match func(record.CandidateRecord) bool) {
	have := 0
	for _, r := range selected {
		if match(r) {
			have++
		}
	}
	if have >= min {
		return
	}

	var promote []record.CandidateRecord
	for _, r := range rest {
		if len(promote) >= min-have {
			break
		}
		if match(r) {
			promote = append(promote, r)
		}
	}

	for _, p := range promote {
		for i := len(selected) - 1; i >= 0; i-- {
			if !match(selected[i]) {
				selected[i] = p
				break
			}
		}
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
