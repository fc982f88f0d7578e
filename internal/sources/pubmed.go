package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/trawl/internal/record"
)

const (
	// PubMedBaseURL is the NCBI E-utilities base URL.
	PubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	pubmedTimeout = 20 * time.Second

	// NCBI allows 3 requests per second without an API key.
	pubmedRateLimit = 3.0
)

// PubMed searches biomedical literature through the NCBI E-utilities.
// Searching is a two-step protocol: esearch returns matching PMIDs,
// efetch returns article XML for those PMIDs.
type PubMed struct {
	client  *client
	baseURL string
}

// NewPubMed creates a PubMed adapter.
func NewPubMed(opts ...Option) *PubMed {
	cfg := applyOptions(PubMedBaseURL, pubmedTimeout, opts)
	return &PubMed{
		client:  newClient(cfg, pubmedRateLimit),
		baseURL: cfg.baseURL,
	}
}

// Name returns the source name.
func (p *PubMed) Name() string { return "PubMed" }

// Search runs a relevance-sorted PubMed search.
func (p *PubMed) Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error) {
	ids, err := p.searchIDs(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return p.fetchArticles(ctx, ids)
}

func (p *PubMed) searchIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(pageSize(maxResults))},
		"sort":    {"relevance"},
		"retmode": {"json"},
	}

	body, err := p.client.get(ctx, p.baseURL+"/esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing esearch result: %v", ErrInvalidResponse, err)
	}

	return result.ESearchResult.IDList, nil
}

// pubmedArticleSet mirrors the efetch XML payload.
type pubmedArticleSet struct {
	Articles []struct {
		Citation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title   string `xml:"ArticleTitle"`
				Journal struct {
					Title        string `xml:"Title"`
					JournalIssue struct {
						PubDate struct {
							Year string `xml:"Year"`
						} `xml:"PubDate"`
					} `xml:"JournalIssue"`
				} `xml:"Journal"`
				Abstract struct {
					Text []string `xml:"AbstractText"`
				} `xml:"Abstract"`
				PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

func (p *PubMed) fetchArticles(ctx context.Context, ids []string) ([]record.CandidateRecord, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}

	body, err := p.client.get(ctx, p.baseURL+"/efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("pubmed efetch: %w", err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: parsing efetch result: %v", ErrInvalidResponse, err)
	}

	records := make([]record.CandidateRecord, 0, len(set.Articles))
	for _, a := range set.Articles {
		article := a.Citation.Article

		// Structured abstracts arrive as multiple sections.
		abstract := strings.TrimSpace(strings.Join(article.Abstract.Text, " "))
		if len(abstract) < MinAbstractLength {
			continue
		}

		isReview := false
		for _, pt := range article.PublicationTypes {
			if strings.Contains(strings.ToLower(pt), "review") {
				isReview = true
				break
			}
		}

		year, _ := strconv.Atoi(article.Journal.JournalIssue.PubDate.Year)

		records = append(records, record.CandidateRecord{
			Title:      article.Title,
			Abstract:   abstract,
			Journal:    article.Journal.Title,
			Year:       year,
			ExternalID: a.Citation.PMID,
			SourceName: p.Name(),
			IsReview:   isReview,
			URL:        fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", a.Citation.PMID),
			RecordType: record.TypePaper,
		})
	}

	return records, nil
}
