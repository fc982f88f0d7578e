package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/matsen/trawl/internal/record"
)

const (
	// EuropePMCBaseURL is the Europe PMC REST API base URL.
	EuropePMCBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	europePMCTimeout   = 15 * time.Second
	europePMCRateLimit = 10.0
)

// EuropePMC searches life-science literature, including bioRxiv and
// medRxiv preprints, through the Europe PMC REST API.
type EuropePMC struct {
	client  *client
	baseURL string
}

// NewEuropePMC creates a Europe PMC adapter.
func NewEuropePMC(opts ...Option) *EuropePMC {
	cfg := applyOptions(EuropePMCBaseURL, europePMCTimeout, opts)
	return &EuropePMC{
		client:  newClient(cfg, europePMCRateLimit),
		baseURL: cfg.baseURL,
	}
}

// Name returns the source name.
func (e *EuropePMC) Name() string { return "EuropePMC" }

type europePMCResult struct {
	Title         string `json:"title"`
	AbstractText  string `json:"abstractText"`
	JournalTitle  string `json:"journalTitle"`
	PubYear       string `json:"pubYear"`
	PMID          string `json:"pmid"`
	DOI           string `json:"doi"`
	PubType       string `json:"pubType"`
	CitedByCount  int    `json:"citedByCount"`
	FullTextURLs  struct {
		FullTextURL []struct {
			URL string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

// Search runs a citation-sorted Europe PMC search.
func (e *EuropePMC) Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error) {
	params := url.Values{
		"query":      {query},
		"format":     {"json"},
		"pageSize":   {strconv.Itoa(pageSize(maxResults))},
		"resultType": {"core"},
		"sort":       {"CITED desc"},
	}

	body, err := e.client.get(ctx, e.baseURL+"/search", params)
	if err != nil {
		return nil, fmt.Errorf("europe pmc search: %w", err)
	}

	var result struct {
		ResultList struct {
			Result []europePMCResult `json:"result"`
		} `json:"resultList"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing results: %v", ErrInvalidResponse, err)
	}

	records := make([]record.CandidateRecord, 0, len(result.ResultList.Result))
	for _, r := range result.ResultList.Result {
		if len(r.AbstractText) < MinAbstractLength {
			continue
		}

		year, _ := strconv.Atoi(r.PubYear)

		recordURL := ""
		if r.PMID != "" {
			recordURL = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", r.PMID)
		} else if len(r.FullTextURLs.FullTextURL) > 0 {
			recordURL = r.FullTextURLs.FullTextURL[0].URL
		}

		records = append(records, record.CandidateRecord{
			Title:         r.Title,
			Abstract:      r.AbstractText,
			Journal:       r.JournalTitle,
			Year:          year,
			ExternalID:    r.PMID,
			DOI:           r.DOI,
			SourceName:    e.Name(),
			IsReview:      r.PubType == "review",
			CitationCount: r.CitedByCount,
			URL:           recordURL,
			RecordType:    record.TypePaper,
		})
	}

	return records, nil
}
