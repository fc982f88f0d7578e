package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var pubmedFetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345678</PMID>
      <Article>
        <Journal>
          <Title>Cell Metabolism</Title>
          <JournalIssue>
            <PubDate><Year>2021</Year></PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>Time-restricted eating and metabolic health</ArticleTitle>
        <Abstract>
          <AbstractText>` + strings.Repeat("Fasting alters metabolism. ", 10) + `</AbstractText>
        </Abstract>
        <PublicationTypeList>
          <PublicationType>Journal Article</PublicationType>
          <PublicationType>Systematic Review</PublicationType>
        </PublicationTypeList>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>99999999</PMID>
      <Article>
        <Journal>
          <Title>Short Abstract Journal</Title>
          <JournalIssue><PubDate><Year>2020</Year></PubDate></JournalIssue>
        </Journal>
        <ArticleTitle>Too short to rank</ArticleTitle>
        <Abstract><AbstractText>Too short.</AbstractText></Abstract>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func newPubMedServer(t *testing.T) *PubMed {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "relevance" {
			t.Errorf("expected sort=relevance, got %q", got)
		}
		fmt.Fprint(w, `{"esearchresult":{"idlist":["12345678","99999999"]}}`)
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pubmedFetchXML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewPubMed(WithBaseURL(srv.URL))
}

func TestPubMedSearch(t *testing.T) {
	pm := newPubMedServer(t)

	records, err := pm.Search(context.Background(), "intermittent fasting", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// The short-abstract article must be discarded at the boundary.
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.ExternalID != "12345678" {
		t.Errorf("expected PMID 12345678, got %q", r.ExternalID)
	}
	if r.Journal != "Cell Metabolism" {
		t.Errorf("expected journal Cell Metabolism, got %q", r.Journal)
	}
	if r.Year != 2021 {
		t.Errorf("expected year 2021, got %d", r.Year)
	}
	if !r.IsReview {
		t.Error("expected review flag from PublicationTypeList")
	}
	if r.RecordType != "paper" {
		t.Errorf("expected type paper, got %q", r.RecordType)
	}
	if r.URL != "https://pubmed.ncbi.nlm.nih.gov/12345678/" {
		t.Errorf("unexpected URL %q", r.URL)
	}
}

func TestPubMedSearch_NoResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pm := NewPubMed(WithBaseURL(srv.URL))
	records, err := pm.Search(context.Background(), "no such topic", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestPubMedSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pm := NewPubMed(WithBaseURL(srv.URL))
	if _, err := pm.Search(context.Background(), "query", 50); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestClientRetriesOnce_On429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	}))
	defer srv.Close()

	pm := NewPubMed(WithBaseURL(srv.URL))
	if _, err := pm.Search(context.Background(), "query", 10); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
}

func TestClientPoliteUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	}))
	defer srv.Close()

	pm := NewPubMed(WithBaseURL(srv.URL), WithContactEmail("team@example.org"))
	if _, err := pm.Search(context.Background(), "q", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(gotUA, "mailto:team@example.org") {
		t.Errorf("expected identifying User-Agent, got %q", gotUA)
	}
}
