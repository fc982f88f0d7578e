package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOptimizeQuery(t *testing.T) {
	gen := &fakeGenerator{answer: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "metformin 500mg") {
			t.Errorf("expected question embedded in prompt")
		}
		return `{
			"source_query": "(metformin) AND (type 2 diabetes[MeSH])",
			"semantic_query": "Does metformin 500mg daily improve glycemic control in type 2 diabetes?",
			"key_concepts": ["metformin", "type 2 diabetes", "glycemic control", "HbA1c", "adults"]
		}`, nil
	}}

	plan, err := optimizeQuery(context.Background(), gen, "Does metformin 500mg daily help type 2 diabetes?")
	if err != nil {
		t.Fatalf("optimizeQuery: %v", err)
	}
	if plan.SourceQuery != "(metformin) AND (type 2 diabetes[MeSH])" {
		t.Errorf("unexpected source query %q", plan.SourceQuery)
	}
	if len(plan.KeyConcepts) != 5 {
		t.Errorf("expected 5 concepts, got %d", len(plan.KeyConcepts))
	}
	if got := plan.ConceptQuery(); got != "metformin type 2 diabetes glycemic control" {
		t.Errorf("unexpected concept query %q", got)
	}
}

func TestOptimizeQuery_BlankFieldsFallBackToQuestion(t *testing.T) {
	gen := &fakeGenerator{answer: func(prompt string) (string, error) {
		return `{"source_query": "  ", "semantic_query": "", "key_concepts": []}`, nil
	}}

	plan, err := optimizeQuery(context.Background(), gen, "the original question")
	if err != nil {
		t.Fatalf("optimizeQuery: %v", err)
	}
	if plan.SourceQuery != "the original question" {
		t.Errorf("expected fallback source query, got %q", plan.SourceQuery)
	}
	if plan.SemanticQuery != "the original question" {
		t.Errorf("expected fallback semantic query, got %q", plan.SemanticQuery)
	}
}

func TestOptimizeQuery_FailureIsFatal(t *testing.T) {
	gen := &fakeGenerator{answer: func(prompt string) (string, error) {
		return "", errors.New("model down")
	}}

	if _, err := optimizeQuery(context.Background(), gen, "q"); err == nil {
		t.Error("expected error when optimization fails")
	}
}
