package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/record"
)

// fakeEmbedder maps text prefixes to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = []float32{0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched length", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestRankCandidates_OrdersBySimilarity(t *testing.T) {
	near := paper("1", "Close match", "pubmed")
	far := paper("2", "Far match", "pubmed")

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"the query":          {1, 0},
		embeddingText(near):  {1, 0.1},
		embeddingText(far):   {0.1, 1},
	}}

	ranked := rankCandidates(context.Background(), embedder, "the query",
		[]record.CandidateRecord{far, near}, 0.15, zap.NewNop())

	if ranked[0].ExternalID != "1" {
		t.Errorf("expected the similar record first, got %q", ranked[0].ExternalID)
	}
	if ranked[0].RelevanceScore <= ranked[1].RelevanceScore {
		t.Error("expected descending scores")
	}
}

func TestRankCandidates_Boosts(t *testing.T) {
	review := paper("1", "A review", "pubmed")
	review.IsReview = true
	cited := paper("2", "Heavily cited", "pubmed")
	cited.CitationCount = 5000
	trial := paper("3", "A trial", "clinicaltrials")
	trial.RecordType = record.TypeClinicalTrial
	plain := paper("4", "Plain paper", "pubmed")

	// All embeddings identical, so only boosts separate the records.
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}

	ranked := rankCandidates(context.Background(), embedder, "q",
		[]record.CandidateRecord{plain, review, cited, trial}, 0.15, zap.NewNop())

	scores := map[string]float64{}
	for _, r := range ranked {
		scores[r.ExternalID] = r.RelevanceScore
	}

	if got := scores["2"] - scores["4"]; math.Abs(got-maxCitationBoost) > 1e-9 {
		t.Errorf("expected citation boost capped at %g, got %g", maxCitationBoost, got)
	}
	if got := scores["1"] - scores["4"]; math.Abs(got-reviewBoost) > 1e-9 {
		t.Errorf("expected review boost %g, got %g", reviewBoost, got)
	}
	if got := scores["3"] - scores["4"]; math.Abs(got-0.15) > 1e-9 {
		t.Errorf("expected trial boost 0.15, got %g", got)
	}
}

func TestRankCandidates_DegradesWithoutEmbeddings(t *testing.T) {
	trial := paper("NCT1", "Trial record", "clinicaltrials")
	trial.RecordType = record.TypeClinicalTrial
	plain := paper("1", "Plain paper", "pubmed")

	embedder := &fakeEmbedder{err: errors.New("embedding service down")}

	ranked := rankCandidates(context.Background(), embedder, "q",
		[]record.CandidateRecord{plain, trial}, 0.15, zap.NewNop())

	if len(ranked) != 2 {
		t.Fatalf("expected all records ranked, got %d", len(ranked))
	}
	if ranked[0].ExternalID != "NCT1" {
		t.Errorf("expected boost-only ranking to favor the trial, got %q", ranked[0].ExternalID)
	}
}

func TestSelectTop_TrialQuota(t *testing.T) {
	var ranked []record.CandidateRecord
	for i := 0; i < 10; i++ {
		p := paper(fmt.Sprintf("%02d", i), fmt.Sprintf("Paper %d", i), "pubmed")
		p.RelevanceScore = 1.0 - float64(i)*0.05
		ranked = append(ranked, p)
	}
	for i := 0; i < 3; i++ {
		tr := paper(fmt.Sprintf("NCT%d", i), fmt.Sprintf("Trial %d", i), "clinicaltrials")
		tr.RecordType = record.TypeClinicalTrial
		tr.RelevanceScore = 0.3 - float64(i)*0.05
		ranked = append(ranked, tr)
	}
	sortByScore(ranked)

	selected := selectTop(ranked, 5, 3, 0)

	if len(selected) != 5 {
		t.Fatalf("expected 5 records, got %d", len(selected))
	}
	trials := 0
	for _, r := range selected {
		if r.IsTrial() {
			trials++
		}
	}
	if trials != 3 {
		t.Errorf("expected 3 trials promoted into selection, got %d", trials)
	}
	for i := 1; i < len(selected); i++ {
		if selected[i].RelevanceScore > selected[i-1].RelevanceScore {
			t.Error("expected selection re-sorted by score")
			break
		}
	}
	if selected[0].ExternalID != "00" {
		t.Errorf("expected best paper retained, got %q", selected[0].ExternalID)
	}
}

func TestSelectTop_QuotaLimitedByAvailableTrials(t *testing.T) {
	ranked := []record.CandidateRecord{
		paper("1", "Paper one", "pubmed"),
		paper("2", "Paper two", "pubmed"),
	}

	selected := selectTop(ranked, 2, 3, 0)
	if len(selected) != 2 {
		t.Fatalf("expected 2 records, got %d", len(selected))
	}
	for _, r := range selected {
		if r.IsTrial() {
			t.Error("no trials exist, none should appear")
		}
	}
}

func TestSelectTop_MinPapers(t *testing.T) {
	var ranked []record.CandidateRecord
	for i := 0; i < 5; i++ {
		tr := paper(fmt.Sprintf("NCT%d", i), fmt.Sprintf("Trial %d", i), "clinicaltrials")
		tr.RecordType = record.TypeClinicalTrial
		tr.RelevanceScore = 1.0 - float64(i)*0.05
		ranked = append(ranked, tr)
	}
	p := paper("77", "The only paper", "pubmed")
	p.RelevanceScore = 0.1
	ranked = append(ranked, p)

	selected := selectTop(ranked, 3, 0, 1)

	found := false
	for _, r := range selected {
		if r.ExternalID == "77" {
			found = true
		}
	}
	if !found {
		t.Error("expected the paper promoted to satisfy the paper minimum")
	}
}
