package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/trawl/internal/record"
)

const (
	// ClinicalTrialsBaseURL is the ClinicalTrials.gov API v2 base URL.
	ClinicalTrialsBaseURL = "https://clinicaltrials.gov/api/v2"

	clinicalTrialsTimeout = 30 * time.Second

	// ClinicalTrials.gov allows roughly 50 requests per minute.
	clinicalTrialsRateLimit = 0.8
)

// trialFields is the explicit field list requested for each study.
var trialFields = strings.Join([]string{
	"NCTId",
	"BriefTitle",
	"BriefSummary",
	"Condition",
	"InterventionName",
	"Phase",
	"OverallStatus",
	"StartDate",
	"EnrollmentCount",
	"PrimaryOutcomeMeasure",
	"HasResults",
}, ",")

// ClinicalTrials searches the ClinicalTrials.gov v2 registry. Registry
// records have no abstract, so protocol fields (conditions,
// interventions, outcomes, enrollment, phase) are mapped into a
// synthetic one to fit the common record shape.
type ClinicalTrials struct {
	client  *client
	baseURL string
}

// NewClinicalTrials creates a ClinicalTrials.gov adapter.
func NewClinicalTrials(opts ...Option) *ClinicalTrials {
	cfg := applyOptions(ClinicalTrialsBaseURL, clinicalTrialsTimeout, opts)
	return &ClinicalTrials{
		client:  newClient(cfg, clinicalTrialsRateLimit),
		baseURL: cfg.baseURL,
	}
}

// Name returns the source name.
func (c *ClinicalTrials) Name() string { return "ClinicalTrials.gov" }

// TrialFilter narrows a registry search.
type TrialFilter struct {
	// Status filters by overall status (e.g. "RECRUITING", "COMPLETED").
	Status string

	// Phase filters by trial phase (e.g. "PHASE3").
	Phase string

	// HasResults keeps only trials with posted results.
	HasResults bool
}

type trialStudy struct {
	HasResults      bool `json:"hasResults"`
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus   string `json:"overallStatus"`
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
		} `json:"statusModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		DesignModule struct {
			Phases         []string `json:"phases"`
			EnrollmentInfo struct {
				Count int `json:"count"`
			} `json:"enrollmentInfo"`
		} `json:"designModule"`
		ArmsInterventionsModule struct {
			Interventions []struct {
				Name string `json:"name"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
		OutcomesModule struct {
			PrimaryOutcomes []struct {
				Measure string `json:"measure"`
			} `json:"primaryOutcomes"`
		} `json:"outcomesModule"`
	} `json:"protocolSection"`
}

// Search runs a registry search sorted by last update.
func (c *ClinicalTrials) Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error) {
	return c.SearchFiltered(ctx, query, maxResults, TrialFilter{})
}

// SearchFiltered runs a registry search with optional status, phase and
// results filters.
func (c *ClinicalTrials) SearchFiltered(ctx context.Context, query string, maxResults int, filter TrialFilter) ([]record.CandidateRecord, error) {
	params := url.Values{
		"query.term": {query},
		"pageSize":   {strconv.Itoa(pageSize(maxResults))},
		"fields":     {trialFields},
		"sort":       {"LastUpdatePostDate:desc"},
	}
	if filter.Status != "" {
		params.Set("filter.overallStatus", filter.Status)
	}
	if filter.Phase != "" {
		params.Set("filter.advanced", fmt.Sprintf("AREA[Phase]%s", filter.Phase))
	}
	if filter.HasResults {
		params.Set("filter.advanced", "AREA[HasResults]true")
	}

	body, err := c.client.get(ctx, c.baseURL+"/studies", params)
	if err != nil {
		return nil, fmt.Errorf("clinicaltrials search: %w", err)
	}

	var result struct {
		Studies []trialStudy `json:"studies"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing studies: %v", ErrInvalidResponse, err)
	}

	records := make([]record.CandidateRecord, 0, len(result.Studies))
	for _, study := range result.Studies {
		if r, ok := c.normalizeTrial(study); ok {
			records = append(records, r)
		}
	}

	return records, nil
}

// FetchTrial looks up a single trial by its NCT identifier.
func (c *ClinicalTrials) FetchTrial(ctx context.Context, nctID string) (*record.CandidateRecord, error) {
	params := url.Values{"fields": {trialFields}}

	body, err := c.client.get(ctx, c.baseURL+"/studies/"+url.PathEscape(nctID), params)
	if err != nil {
		return nil, fmt.Errorf("clinicaltrials fetch %s: %w", nctID, err)
	}

	var study trialStudy
	if err := json.Unmarshal(body, &study); err != nil {
		return nil, fmt.Errorf("%w: parsing study: %v", ErrInvalidResponse, err)
	}

	r, ok := c.normalizeTrial(study)
	if !ok {
		return nil, fmt.Errorf("%w: study %s has no usable summary", ErrInvalidResponse, nctID)
	}
	return &r, nil
}

// normalizeTrial maps a registry study into the common record shape.
func (c *ClinicalTrials) normalizeTrial(study trialStudy) (record.CandidateRecord, bool) {
	proto := study.ProtocolSection
	nctID := proto.IdentificationModule.NCTID
	if nctID == "" {
		return record.CandidateRecord{}, false
	}

	abstract := syntheticTrialAbstract(study)
	if len(abstract) < MinAbstractLength {
		return record.CandidateRecord{}, false
	}

	year := 0
	if date := proto.StatusModule.StartDateStruct.Date; date != "" {
		if y, err := strconv.Atoi(strings.SplitN(date, "-", 2)[0]); err == nil {
			year = y
		}
	}

	return record.CandidateRecord{
		Title:      proto.IdentificationModule.BriefTitle,
		Abstract:   abstract,
		Journal:    "ClinicalTrials.gov",
		Year:       year,
		ExternalID: nctID,
		SourceName: c.Name(),
		URL:        "https://clinicaltrials.gov/study/" + nctID,
		RecordType: record.TypeClinicalTrial,
	}, true
}

// syntheticTrialAbstract builds an abstract-shaped summary from protocol
// fields so trials can be ranked and judged alongside papers.
func syntheticTrialAbstract(study trialStudy) string {
	proto := study.ProtocolSection
	var parts []string

	if s := proto.DescriptionModule.BriefSummary; s != "" {
		parts = append(parts, s)
	}

	if conditions := proto.ConditionsModule.Conditions; len(conditions) > 0 {
		parts = append(parts, "Conditions: "+joinFirst(conditions, 3))
	}

	if interventions := proto.ArmsInterventionsModule.Interventions; len(interventions) > 0 {
		names := make([]string, len(interventions))
		for i, iv := range interventions {
			names[i] = iv.Name
		}
		parts = append(parts, "Interventions: "+joinFirst(names, 3))
	}

	if outcomes := proto.OutcomesModule.PrimaryOutcomes; len(outcomes) > 0 {
		measures := make([]string, len(outcomes))
		for i, o := range outcomes {
			measures[i] = o.Measure
		}
		parts = append(parts, "Primary outcomes: "+joinFirst(measures, 2))
	}

	if count := proto.DesignModule.EnrollmentInfo.Count; count > 0 {
		parts = append(parts, fmt.Sprintf("Enrollment: %d participants", count))
	}

	if phases := proto.DesignModule.Phases; len(phases) > 0 {
		if phase := strings.Join(phases, ", "); phase != "N/A" {
			parts = append(parts, "Phase: "+phase)
		}
	}

	if len(parts) == 0 {
		return proto.IdentificationModule.BriefTitle
	}
	return strings.Join(parts, " | ")
}

func joinFirst(values []string, n int) string {
	if len(values) > n {
		values = values[:n]
	}
	return strings.Join(values, ", ")
}
