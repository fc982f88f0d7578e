package retrieval

import (
	"strings"
	"testing"

	"github.com/matsen/trawl/internal/record"
)

func paper(id, title, source string) record.CandidateRecord {
	return record.CandidateRecord{
		Title:      title,
		Abstract:   "An abstract long enough to be plausible for " + title,
		ExternalID: id,
		SourceName: source,
		RecordType: record.TypePaper,
	}
}

func TestDeduplicate_ByPMID(t *testing.T) {
	records := []record.CandidateRecord{
		paper("11111111", "Statins and cardiovascular outcomes", "pubmed"),
		paper("11111111", "Statins and Cardiovascular Outcomes.", "europepmc"),
		paper("22222222", "A different paper entirely", "pubmed"),
	}

	unique := Deduplicate(records)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(unique))
	}
	if unique[0].SourceName != "pubmed" {
		t.Errorf("expected first occurrence kept, got source %q", unique[0].SourceName)
	}
}

func TestDeduplicate_ByTitlePrefix(t *testing.T) {
	long := strings.Repeat("statin therapy in older adults ", 4)
	records := []record.CandidateRecord{
		paper("", long+"part one", "openalex"),
		paper("", strings.ToUpper(long)+"PART TWO", "crossref"),
	}

	unique := Deduplicate(records)
	if len(unique) != 1 {
		t.Fatalf("expected title-prefix collision to dedupe, got %d records", len(unique))
	}
	if unique[0].SourceName != "openalex" {
		t.Errorf("expected first occurrence kept, got %q", unique[0].SourceName)
	}
}

func TestDeduplicate_DistinctShortTitlesSurvive(t *testing.T) {
	records := []record.CandidateRecord{
		paper("", "Aspirin in primary prevention", "openalex"),
		paper("", "Aspirin in secondary prevention", "openalex"),
	}

	unique := Deduplicate(records)
	if len(unique) != 2 {
		t.Errorf("expected distinct titles kept, got %d records", len(unique))
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	records := []record.CandidateRecord{
		paper("1", "Alpha study", "pubmed"),
		paper("1", "Alpha study", "europepmc"),
		paper("2", "Beta study", "pubmed"),
		paper("", "Gamma study", "crossref"),
	}

	once := Deduplicate(records)
	twice := Deduplicate(once)

	if len(once) != len(twice) {
		t.Errorf("deduplication not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("record %d changed on second pass", i)
		}
	}
}
