package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/trawl/internal/record"
)

const (
	// OpenAlexBaseURL is the OpenAlex API base URL.
	OpenAlexBaseURL = "https://api.openalex.org"

	openalexTimeout = 15 * time.Second

	// OpenAlex allows 10 requests per second.
	openalexRateLimit = 10.0
)

// OpenAlex searches scholarly works through the OpenAlex API. Abstracts
// arrive as an inverted index and are reconstructed into plain text.
type OpenAlex struct {
	client  *client
	baseURL string
}

// NewOpenAlex creates an OpenAlex adapter.
func NewOpenAlex(opts ...Option) *OpenAlex {
	cfg := applyOptions(OpenAlexBaseURL, openalexTimeout, opts)
	return &OpenAlex{
		client:  newClient(cfg, openalexRateLimit),
		baseURL: cfg.baseURL,
	}
}

// Name returns the source name.
func (o *OpenAlex) Name() string { return "OpenAlex" }

type openalexWork struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	PublicationYear       int              `json:"publication_year"`
	CitedByCount          int              `json:"cited_by_count"`
	PrimaryLocation       *struct {
		Source *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	IDs struct {
		PMID string `json:"pmid"`
		DOI  string `json:"doi"`
	} `json:"ids"`
}

// Search runs a citation-sorted OpenAlex works search.
func (o *OpenAlex) Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error) {
	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(pageSize(maxResults))},
		"filter":   {"has_abstract:true,type:article"},
		"sort":     {"cited_by_count:desc"},
		"select":   {"id,title,display_name,abstract_inverted_index,publication_year,cited_by_count,primary_location,ids"},
	}

	body, err := o.client.get(ctx, o.baseURL+"/works", params)
	if err != nil {
		return nil, fmt.Errorf("openalex search: %w", err)
	}

	var result struct {
		Results []openalexWork `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing works: %v", ErrInvalidResponse, err)
	}

	records := make([]record.CandidateRecord, 0, len(result.Results))
	for _, work := range result.Results {
		abstract := reconstructAbstract(work.AbstractInvertedIndex)
		if len(abstract) < MinAbstractLength {
			continue
		}

		title := work.Title
		if title == "" {
			title = work.DisplayName
		}

		journal := ""
		if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
			journal = work.PrimaryLocation.Source.DisplayName
		}

		pmid := strings.Trim(strings.TrimPrefix(work.IDs.PMID, "https://pubmed.ncbi.nlm.nih.gov/"), "/")
		doi := strings.TrimPrefix(work.IDs.DOI, "https://doi.org/")

		recordURL := work.ID
		if pmid != "" {
			recordURL = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid)
		}

		records = append(records, record.CandidateRecord{
			Title:         title,
			Abstract:      abstract,
			Journal:       journal,
			Year:          work.PublicationYear,
			ExternalID:    pmid,
			DOI:           doi,
			SourceName:    o.Name(),
			CitationCount: work.CitedByCount,
			URL:           recordURL,
			RecordType:    record.TypePaper,
		})
	}

	return records, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index
// (word -> positions).
func reconstructAbstract(inverted map[string][]int) string {
	if len(inverted) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range inverted {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}

	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}
