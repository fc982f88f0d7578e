package record

import "testing"

func TestIsTrial_ByType(t *testing.T) {
	r := CandidateRecord{RecordType: TypeClinicalTrial, ExternalID: "NCT01234567"}
	if !r.IsTrial() {
		t.Error("expected trial record to report IsTrial")
	}
}

func TestIsTrial_ByIdentifierPrefix(t *testing.T) {
	// A trial relayed through a bibliographic source keeps its NCT ID
	// but may arrive typed as a paper.
	r := CandidateRecord{RecordType: TypePaper, ExternalID: "NCT04567890"}
	if !r.IsTrial() {
		t.Error("expected NCT-identified record to report IsTrial")
	}
}

func TestIsTrial_Paper(t *testing.T) {
	r := CandidateRecord{RecordType: TypePaper, ExternalID: "12345678"}
	if r.IsTrial() {
		t.Error("expected paper to not report IsTrial")
	}
}

func TestPMID(t *testing.T) {
	if got := (CandidateRecord{ExternalID: "12345678"}).PMID(); got != "12345678" {
		t.Errorf("expected PMID 12345678, got %q", got)
	}
	if got := (CandidateRecord{ExternalID: "NCT01234567"}).PMID(); got != "" {
		t.Errorf("expected empty PMID for trial, got %q", got)
	}
}

func TestConceptQuery(t *testing.T) {
	plan := SearchPlan{KeyConcepts: []string{"intermittent fasting", "autophagy", "insulin sensitivity", "ketosis"}}
	want := "intermittent fasting autophagy insulin sensitivity"
	if got := plan.ConceptQuery(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestConceptQuery_FewerThanThree(t *testing.T) {
	plan := SearchPlan{KeyConcepts: []string{"sleep"}}
	if got := plan.ConceptQuery(); got != "sleep" {
		t.Errorf("expected %q, got %q", "sleep", got)
	}
}
