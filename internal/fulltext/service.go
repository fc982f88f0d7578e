// Package fulltext retrieves open-access full document text through a
// chain of fallback providers and extracts it from PDF. Every failure
// in this package is non-fatal to the caller: records keep their
// abstract when no full text can be obtained.
package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	// maxPDFPages caps extraction to the first pages of a document.
	maxPDFPages = 50

	serviceTimeout = 30 * time.Second
)

// Endpoints holds the provider base URLs, overridable for testing.
type Endpoints struct {
	Unpaywall string
	PMCOA     string
	IDConv    string
	EUtils    string
}

// DefaultEndpoints returns the production provider URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Unpaywall: "https://api.unpaywall.org/v2",
		PMCOA:     "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi",
		IDConv:    "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/",
		EUtils:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
	}
}

// Result is extracted full text plus provenance.
type Result struct {
	Text      string
	Source    string
	CharCount int
	WordCount int
}

// Service resolves and extracts full text. The fallback chain per
// record is: PMC Open Access by PMCID, PMID-to-PMCID conversion then
// PMC, Unpaywall by DOI (resolving the DOI from the PMID when absent).
type Service struct {
	client    *http.Client
	email     string
	endpoints Endpoints
	cache     *Cache

	// extract downloads a PDF and returns its text. A field so tests
	// can substitute extraction without a real PDF.
	extract func(ctx context.Context, pdfURL string) (string, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ServiceOption {
	return func(s *Service) {
		s.client = hc
	}
}

// WithEndpoints overrides the provider base URLs (for testing).
func WithEndpoints(e Endpoints) ServiceOption {
	return func(s *Service) {
		s.endpoints = e
	}
}

// WithCache attaches a document cache consulted before the network.
func WithCache(c *Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService creates a full-text service identified to polite-use API
// pools by the given contact email.
func NewService(email string, opts ...ServiceOption) *Service {
	s := &Service{
		client:    &http.Client{Timeout: serviceTimeout},
		email:     email,
		endpoints: DefaultEndpoints(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extract == nil {
		s.extract = s.downloadAndExtract
	}
	return s
}

// FullText attempts to retrieve full text using whichever identifiers
// are known, stopping at the first provider that succeeds. Returns
// (nil, nil) when no open-access text is available.
func (s *Service) FullText(ctx context.Context, pmid, doi, pmcid string) (*Result, error) {
	if pmid == "" && doi == "" && pmcid == "" {
		return nil, nil
	}

	cacheKey := firstNonEmpty(pmcid, pmid, doi)
	if s.cache != nil {
		if text, source, ok := s.cache.Get(cacheKey); ok {
			return buildResult(text, source), nil
		}
	}

	var text, source string

	if pmcid != "" {
		text, _ = s.pmcFullText(ctx, pmcid)
		source = "PMC"
	}

	if text == "" && pmid != "" {
		if converted, err := s.pmidToPMCID(ctx, pmid); err == nil && converted != "" {
			text, _ = s.pmcFullText(ctx, converted)
			source = "PMC"
		}
	}

	if text == "" && doi != "" {
		text, _ = s.unpaywallFullText(ctx, doi)
		source = "Unpaywall"
	}

	if text == "" && pmid != "" {
		if resolved, err := s.pmidToDOI(ctx, pmid); err == nil && resolved != "" {
			text, _ = s.unpaywallFullText(ctx, resolved)
			source = "Unpaywall"
		}
	}

	if text == "" {
		return nil, nil
	}

	cleaned := Clean(text)
	if s.cache != nil {
		// Cache write failures never block the result.
		_ = s.cache.Put(cacheKey, source, cleaned)
	}

	return buildResult(cleaned, source), nil
}

func buildResult(text, source string) *Result {
	return &Result{
		Text:      text,
		Source:    source,
		CharCount: len(text),
		WordCount: len(strings.Fields(text)),
	}
}

// pmidToPMCID converts a PMID to a PMCID through the NCBI ID converter.
func (s *Service) pmidToPMCID(ctx context.Context, pmid string) (string, error) {
	u := fmt.Sprintf("%s?ids=%s&format=json", s.endpoints.IDConv, url.QueryEscape(pmid))

	body, err := s.get(ctx, u)
	if err != nil {
		return "", err
	}

	var result struct {
		Records []struct {
			PMCID string `json:"pmcid"`
		} `json:"records"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing id conversion: %w", err)
	}
	if len(result.Records) == 0 {
		return "", nil
	}
	return result.Records[0].PMCID, nil
}

// pmidToDOI resolves a DOI from a PMID via the E-utilities summary.
func (s *Service) pmidToDOI(ctx context.Context, pmid string) (string, error) {
	u := fmt.Sprintf("%s/esummary.fcgi?db=pubmed&id=%s&retmode=json", s.endpoints.EUtils, url.QueryEscape(pmid))

	body, err := s.get(ctx, u)
	if err != nil {
		return "", err
	}

	var result struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing esummary: %w", err)
	}

	raw, ok := result.Result[pmid]
	if !ok {
		return "", nil
	}

	var summary struct {
		ArticleIDs []struct {
			IDType string `json:"idtype"`
			Value  string `json:"value"`
		} `json:"articleids"`
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return "", fmt.Errorf("parsing article ids: %w", err)
	}

	for _, aid := range summary.ArticleIDs {
		if aid.IDType == "doi" {
			return aid.Value, nil
		}
	}
	return "", nil
}

// pmcFullText fetches a PDF location from the PMC Open Access service
// and extracts its text.
func (s *Service) pmcFullText(ctx context.Context, pmcid string) (string, error) {
	clean := strings.TrimPrefix(pmcid, "PMC")
	u := fmt.Sprintf("%s?id=PMC%s", s.endpoints.PMCOA, url.QueryEscape(clean))

	body, err := s.get(ctx, u)
	if err != nil {
		return "", err
	}

	var oa struct {
		Records []struct {
			Links []struct {
				Format string `xml:"format,attr"`
				Href   string `xml:"href,attr"`
			} `xml:"link"`
		} `xml:"records>record"`
	}
	if err := xml.Unmarshal(body, &oa); err != nil {
		return "", fmt.Errorf("parsing oa response: %w", err)
	}

	for _, rec := range oa.Records {
		for _, link := range rec.Links {
			if link.Format == "pdf" && link.Href != "" {
				return s.extract(ctx, link.Href)
			}
		}
	}
	return "", nil
}

// unpaywallFullText finds the best open-access PDF location for a DOI
// and extracts its text.
func (s *Service) unpaywallFullText(ctx context.Context, doi string) (string, error) {
	u := fmt.Sprintf("%s/%s?email=%s", s.endpoints.Unpaywall, url.PathEscape(doi), url.QueryEscape(s.email))

	body, err := s.get(ctx, u)
	if err != nil {
		return "", err
	}

	var result struct {
		IsOA           bool `json:"is_oa"`
		BestOALocation struct {
			URLForPDF string `json:"url_for_pdf"`
		} `json:"best_oa_location"`
		OALocations []struct {
			URLForPDF string `json:"url_for_pdf"`
		} `json:"oa_locations"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing unpaywall response: %w", err)
	}
	if !result.IsOA {
		return "", nil
	}

	pdfURL := result.BestOALocation.URLForPDF
	if pdfURL == "" {
		for _, loc := range result.OALocations {
			if loc.URLForPDF != "" {
				pdfURL = loc.URLForPDF
				break
			}
		}
	}
	if pdfURL == "" {
		return "", nil
	}

	return s.extract(ctx, pdfURL)
}

// downloadAndExtract fetches a PDF and extracts text from its first
// pages.
func (s *Service) downloadAndExtract(ctx context.Context, pdfURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("User-Agent", fmt.Sprintf("trawl/1.0 (mailto:%s)", s.email))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pdf download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "pdf") && !strings.HasSuffix(pdfURL, ".pdf") {
		return "", fmt.Errorf("unexpected content type %q", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading pdf body: %w", err)
	}

	return extractPDFText(data, maxPDFPages)
}

// extractPDFText extracts plain text from the first maxPages of a PDF.
// Pages that fail to parse are skipped.
func extractPDFText(data []byte, maxPages int) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	if maxPages <= 0 || maxPages > reader.NumPage() {
		maxPages = reader.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	if builder.Len() == 0 {
		return "", fmt.Errorf("no extractable text in pdf")
	}
	return builder.String(), nil
}

func (s *Service) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("trawl/1.0 (mailto:%s)", s.email))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
