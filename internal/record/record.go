// Package record defines the common candidate shape shared by all
// retrieval sources. Source adapters normalize provider responses into
// CandidateRecord at their boundary; no downstream stage sees
// provider-specific fields.
package record

import "strings"

// Type distinguishes literature records from trial-registry records.
type Type string

const (
	// TypePaper is a published or preprint research article.
	TypePaper Type = "paper"

	// TypeClinicalTrial is a record from a clinical-trial registry.
	TypeClinicalTrial Type = "clinical_trial"
)

// CandidateRecord is one paper or trial flowing through the pipeline.
//
// A record is immutable once created by its adapter, except for the
// annotation fields populated by later stages: RelevanceScore (ranker),
// RelevanceReason (filter), and FullText/FullTextSource/HasFullText
// (enricher).
type CandidateRecord struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Journal  string `json:"journal"`
	Year     int    `json:"year"` // 0 = unknown

	// ExternalID is the provider-native identifier (PMID, NCT ID)
	// and the primary natural key for deduplication.
	ExternalID string `json:"external_id"`
	DOI        string `json:"doi,omitempty"`

	SourceName    string `json:"source"`
	IsReview      bool   `json:"is_review"`
	CitationCount int    `json:"citation_count"` // 0 when unknown
	URL           string `json:"url"`
	RecordType    Type   `json:"type"`

	RelevanceScore  float64 `json:"relevance_score,omitempty"`
	RelevanceReason string  `json:"relevance_reason,omitempty"`
	FullText        string  `json:"fulltext,omitempty"`
	FullTextSource  string  `json:"fulltext_source,omitempty"`
	HasFullText     bool    `json:"has_fulltext"`
}

// IsTrial reports whether the record came from a clinical-trial registry.
// Registry records carry NCT identifiers even when relayed through a
// bibliographic source, so the identifier prefix is checked as well.
func (r CandidateRecord) IsTrial() bool {
	return r.RecordType == TypeClinicalTrial || strings.HasPrefix(r.ExternalID, "NCT")
}

// PMID returns the record's PubMed identifier, or "" for registry records.
func (r CandidateRecord) PMID() string {
	if strings.HasPrefix(r.ExternalID, "NCT") {
		return ""
	}
	return r.ExternalID
}

// SearchPlan is the output of query optimization: per-source search
// strings plus a short list of key concepts. Created once per request
// and read-only thereafter.
type SearchPlan struct {
	// SourceQuery is tuned for controlled-vocabulary boolean search
	// (MeSH terms, AND/OR operators).
	SourceQuery string `json:"source_query"`

	// SemanticQuery is a natural-language query for relevance-ranked
	// keyword search.
	SemanticQuery string `json:"semantic_query"`

	// KeyConcepts holds 3-8 key terms in decreasing importance.
	KeyConcepts []string `json:"key_concepts"`
}

// ConceptQuery derives the secondary search string from the first three
// key concepts. Shorter queries keep registry APIs happy.
func (p SearchPlan) ConceptQuery() string {
	concepts := p.KeyConcepts
	if len(concepts) > 3 {
		concepts = concepts[:3]
	}
	return strings.Join(concepts, " ")
}
