package retrieval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig controls a single bibliographic source.
type SourceConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxResults int  `yaml:"max_results" json:"max_results"`
}

// Config controls the retrieval pipeline. Zero values are replaced by
// DefaultConfig at load time, so a partial YAML file only overrides
// what it names.
type Config struct {
	PubMed         SourceConfig `yaml:"pubmed" json:"pubmed"`
	OpenAlex       SourceConfig `yaml:"openalex" json:"openalex"`
	EuropePMC      SourceConfig `yaml:"europepmc" json:"europepmc"`
	CrossRef       SourceConfig `yaml:"crossref" json:"crossref"`
	ClinicalTrials SourceConfig `yaml:"clinicaltrials" json:"clinicaltrials"`

	MaxFinalRecords    int     `yaml:"max_final_records" json:"max_final_records"`
	MinClinicalTrials  int     `yaml:"min_clinical_trials" json:"min_clinical_trials"`
	MinPapers          int     `yaml:"min_papers" json:"min_papers"`
	ClinicalTrialBoost float64 `yaml:"clinical_trial_boost" json:"clinical_trial_boost"`
	IncludeFullText    bool    `yaml:"include_fulltext" json:"include_fulltext"`
	ContactEmail       string  `yaml:"contact_email" json:"contact_email"`
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	source := SourceConfig{Enabled: true, MaxResults: 50}
	return Config{
		PubMed:             source,
		OpenAlex:           source,
		EuropePMC:          source,
		CrossRef:           source,
		ClinicalTrials:     source,
		MaxFinalRecords:    25,
		MinClinicalTrials:  3,
		MinPapers:          10,
		ClinicalTrialBoost: 0.15,
		IncludeFullText:    true,
		ContactEmail:       "researcher@example.com",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration bounds.
func (c Config) Validate() error {
	if c.MaxFinalRecords <= 0 {
		return fmt.Errorf("max_final_records must be positive, got %d", c.MaxFinalRecords)
	}
	if c.MinClinicalTrials < 0 {
		return fmt.Errorf("min_clinical_trials must not be negative, got %d", c.MinClinicalTrials)
	}
	if c.ClinicalTrialBoost < 0 || c.ClinicalTrialBoost > 0.5 {
		return fmt.Errorf("clinical_trial_boost must be in [0, 0.5], got %g", c.ClinicalTrialBoost)
	}
	return nil
}
