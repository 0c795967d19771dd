package model

import "math"

// ItemizedAward is one component of a compensation order as extracted from
// the source document.
type ItemizedAward struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// ExtractionResult is the strict-schema JSON returned by an extraction model
// for one case document.
type ExtractionResult struct {
	Summary            string          `json:"summary"`
	Outcome            Outcome         `json:"outcome"`
	CompensationAmount *float64        `json:"compensation_amount"`
	Confident          bool            `json:"confident"`
	CostAmount         *float64        `json:"cost_amount"`
	PropertyAddress    string          `json:"property_address"`
	Category           string          `json:"category"`
	Awards             []ItemizedAward `json:"awards"`
	SupportingQuote    string          `json:"supporting_quote"`
}

// AwardSum totals the itemized award components.
func (r *ExtractionResult) AwardSum() float64 {
	var sum float64
	for _, a := range r.Awards {
		sum += a.Amount
	}
	return sum
}

// SumConsistent reports whether the claimed total is supported by the
// itemized breakdown within tolerance. A result with no breakdown or no
// claimed amount is trivially consistent.
func (r *ExtractionResult) SumConsistent(tolerance float64) bool {
	if r.CompensationAmount == nil || len(r.Awards) == 0 {
		return true
	}
	return math.Abs(*r.CompensationAmount-r.AwardSum()) <= tolerance
}
