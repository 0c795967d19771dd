package model

import "time"

// PartyType classifies a party's position in the tenancy relationship.
type PartyType string

const (
	PartyLandlord PartyType = "landlord"
	PartyTenant   PartyType = "tenant"
	PartyUnknown  PartyType = "unknown"
)

// CaseRole is the role a party held in a particular case.
type CaseRole string

const (
	RoleApplicant  CaseRole = "applicant"
	RoleRespondent CaseRole = "respondent"
)

// Party is a resolved real-world entity appearing across cases. NormalizedName
// is unique; the aggregate counters are derived by the resolver and never
// hand-edited.
type Party struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	NormalizedName string    `json:"normalized_name"`
	Type           PartyType `json:"type"`

	TotalCases        int     `json:"total_cases"`
	CasesAsApplicant  int     `json:"cases_as_applicant"`
	CasesAsRespondent int     `json:"cases_as_respondent"`
	EnforcementCases  int     `json:"enforcement_cases"`
	AwardedFor        float64 `json:"awarded_for"`
	AwardedAgainst    float64 `json:"awarded_against"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaseParty links a Party to a CaseRecord with the role and party type it
// held at the time of that case. Unique per (case, party, role).
type CaseParty struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	PartyID   string    `json:"party_id"`
	Role      CaseRole  `json:"role"`
	PartyType PartyType `json:"party_type"`
}
