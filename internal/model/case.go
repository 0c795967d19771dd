package model

import (
	"regexp"
	"strings"
	"time"
)

// SourceType identifies which tribunal listing a record was harvested from.
type SourceType string

const (
	// SourceDisputes is the tenancy dispute decision listing.
	SourceDisputes SourceType = "disputes"
	// SourceEnforcement is the enforcement order listing.
	SourceEnforcement SourceType = "enforcement"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	return s == SourceDisputes || s == SourceEnforcement
}

// Outcome is the AI-extracted disposition of a case.
type Outcome string

const (
	OutcomeGranted          Outcome = "granted"
	OutcomePartiallyGranted Outcome = "partially_granted"
	OutcomeDismissed        Outcome = "dismissed"
	OutcomeWithdrawn        Outcome = "withdrawn"
	OutcomeUnknown          Outcome = "unknown"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeGranted, OutcomePartiallyGranted, OutcomeDismissed, OutcomeWithdrawn, OutcomeUnknown:
		return true
	}
	return false
}

// DocumentLink points to a source document attached to a listing entry.
type DocumentLink struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// CaseRecord is one harvested listing entry. The natural key is
// (SourceType, Reference); the same logical case may appear as several
// records when the tribunal publishes multiple document parts.
type CaseRecord struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	Reference  string     `json:"reference"`
	Heading    string     `json:"heading,omitempty"`
	Date       time.Time  `json:"date"`

	ApplicantName  string    `json:"applicant_name,omitempty"`
	ApplicantType  PartyType `json:"applicant_type,omitempty"`
	RespondentName string    `json:"respondent_name,omitempty"`
	RespondentType PartyType `json:"respondent_type,omitempty"`

	Documents []DocumentLink `json:"documents,omitempty"`
	RawHTML   string         `json:"raw_html,omitempty"`

	// AI-derived fields. A nil CompensationAmount with a non-nil
	// AIProcessedAt means the amount could not be confidently determined;
	// that is not the same as a confident zero.
	Summary            string     `json:"summary,omitempty"`
	Outcome            Outcome    `json:"outcome,omitempty"`
	CompensationAmount *float64   `json:"compensation_amount,omitempty"`
	CostAmount         *float64   `json:"cost_amount,omitempty"`
	PropertyAddress    string     `json:"property_address,omitempty"`
	Category           string     `json:"category,omitempty"`
	AIProcessedAt      *time.Time `json:"ai_processed_at,omitempty"`
	AIError            string     `json:"ai_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Processed reports whether the enrichment pipeline has visited this record,
// successfully or not.
func (c *CaseRecord) Processed() bool {
	return c.AIProcessedAt != nil
}

// partSuffix matches a short numeric document-part suffix like "-1" or "-12".
var partSuffix = regexp.MustCompile(`-\d{1,2}$`)

// CaseKey returns the logical-case grouping key for a reference: its first
// whitespace-delimited token with any trailing document-part suffix removed.
// Two records with the same Date and CaseKey count as one case. This is a
// published-statistics policy; changing it changes reported party totals.
func CaseKey(reference string) string {
	fields := strings.Fields(strings.TrimSpace(reference))
	if len(fields) == 0 {
		return ""
	}
	return partSuffix.ReplaceAllString(fields[0], "")
}

// DedupKey combines the record date and reference prefix into the key used
// for same-case aggregation.
func (c *CaseRecord) DedupKey() string {
	return c.Date.Format("2006-01-02") + "|" + CaseKey(c.Reference)
}
