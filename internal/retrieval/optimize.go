package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/trawl/internal/record"
)

const optimizePromptTemplate = `You are a biomedical search specialist. Convert the research question below into search inputs for bibliographic databases.

Research question: %s

Produce a JSON object with exactly these keys:
- "source_query": a boolean query for PubMed-style databases. Use MeSH terms where they exist, OR-join synonyms, and AND-join distinct concepts. Keep every numeric quantity from the question verbatim (doses, durations, ages, thresholds).
- "semantic_query": a single natural-language sentence restating the question for embedding similarity. Keep numeric quantities verbatim.
- "key_concepts": an array of 5 to 8 short strings naming the core concepts, including population, intervention and outcome terms.

Respond with JSON only.`

// optimizeQuery turns a free-form research question into a search
// plan. A failure here is fatal to the pipeline run: every downstream
// stage depends on the plan.
func optimizeQuery(ctx context.Context, gen Generator, question string) (record.SearchPlan, error) {
	prompt := fmt.Sprintf(optimizePromptTemplate, question)

	var plan record.SearchPlan
	if err := gen.CompleteJSON(ctx, prompt, &plan); err != nil {
		return record.SearchPlan{}, fmt.Errorf("optimizing query: %w", err)
	}

	// The question itself is an acceptable query when the model leaves
	// a field blank.
	if strings.TrimSpace(plan.SourceQuery) == "" {
		plan.SourceQuery = question
	}
	if strings.TrimSpace(plan.SemanticQuery) == "" {
		plan.SemanticQuery = question
	}
	return plan, nil
}
