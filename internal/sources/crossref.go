package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/trawl/internal/record"
)

const (
	// CrossRefBaseURL is the CrossRef API base URL.
	CrossRefBaseURL = "https://api.crossref.org"

	// CrossRef can be slow; use a longer timeout.
	crossRefTimeout   = 20 * time.Second
	crossRefRateLimit = 10.0
)

// jatsTagRe matches the JATS/HTML markup embedded in CrossRef abstracts.
var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

// CrossRef searches DOI metadata through the CrossRef works API.
type CrossRef struct {
	client  *client
	baseURL string
}

// NewCrossRef creates a CrossRef adapter.
func NewCrossRef(opts ...Option) *CrossRef {
	cfg := applyOptions(CrossRefBaseURL, crossRefTimeout, opts)
	return &CrossRef{
		client:  newClient(cfg, crossRefRateLimit),
		baseURL: cfg.baseURL,
	}
}

// Name returns the source name.
func (c *CrossRef) Name() string { return "CrossRef" }

type crossRefItem struct {
	Title          []string `json:"title"`
	Abstract       string   `json:"abstract"`
	ContainerTitle []string `json:"container-title"`
	Published      struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
	DOI                 string `json:"DOI"`
	IsReferencedByCount int    `json:"is-referenced-by-count"`
	URL                 string `json:"URL"`
}

// Search runs a citation-sorted CrossRef works search.
func (c *CrossRef) Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error) {
	params := url.Values{
		"query":  {query},
		"rows":   {strconv.Itoa(pageSize(maxResults))},
		"filter": {"has-abstract:true,type:journal-article"},
		"sort":   {"is-referenced-by-count"},
		"order":  {"desc"},
	}

	body, err := c.client.get(ctx, c.baseURL+"/works", params)
	if err != nil {
		return nil, fmt.Errorf("crossref search: %w", err)
	}

	var result struct {
		Message struct {
			Items []crossRefItem `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing works: %v", ErrInvalidResponse, err)
	}

	records := make([]record.CandidateRecord, 0, len(result.Message.Items))
	for _, item := range result.Message.Items {
		abstract := strings.TrimSpace(jatsTagRe.ReplaceAllString(item.Abstract, ""))
		if len(abstract) < MinAbstractLength {
			continue
		}

		title := ""
		if len(item.Title) > 0 {
			title = item.Title[0]
		}

		journal := ""
		if len(item.ContainerTitle) > 0 {
			journal = item.ContainerTitle[0]
		}

		year := 0
		if len(item.Published.DateParts) > 0 && len(item.Published.DateParts[0]) > 0 {
			year = item.Published.DateParts[0][0]
		}

		recordURL := item.URL
		if recordURL == "" && item.DOI != "" {
			recordURL = "https://doi.org/" + item.DOI
		}

		// CrossRef has no PMIDs; the DOI is the only identifier.
		records = append(records, record.CandidateRecord{
			Title:         title,
			Abstract:      abstract,
			Journal:       journal,
			Year:          year,
			DOI:           item.DOI,
			SourceName:    c.Name(),
			CitationCount: item.IsReferencedByCount,
			URL:           recordURL,
			RecordType:    record.TypePaper,
		})
	}

	return records, nil
}
