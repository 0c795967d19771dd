package verifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal-cli/internal/model"
)

// extractionSystemPrompt instructs the model to return the strict extraction
// schema. It is shared verbatim between the primary and arbitration passes so
// both models answer the same question.
const extractionSystemPrompt = `You analyze tenancy tribunal decision documents.
Read the attached decision and respond with a single JSON object, no prose,
using exactly these fields:

{
  "summary": "2-3 sentence factual summary of the decision",
  "outcome": "granted" | "partially_granted" | "dismissed" | "withdrawn" | "unknown",
  "compensation_amount": total monetary award ordered, as a number, or null,
  "confident": true only if the amount is stated explicitly in the document,
  "cost_amount": filing/costs award as a number, or null,
  "property_address": "address of the tenancy, or empty string",
  "category": "short dispute category, e.g. rent arrears, bond, damages",
  "awards": [{"label": "component description", "amount": number}, ...],
  "supporting_quote": "the sentence from the document stating the award"
}

If the document does not state an amount, use null and set confident to false.
Never guess amounts.`

// buildUserPrompt gives the model the listing metadata alongside the document.
func buildUserPrompt(rec *model.CaseRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case reference: %s\n", rec.Reference)
	fmt.Fprintf(&b, "Hearing date: %s\n", rec.Date.Format("2 January 2006"))
	if rec.ApplicantName != "" {
		fmt.Fprintf(&b, "Applicant: %s\n", rec.ApplicantName)
	}
	if rec.RespondentName != "" {
		fmt.Fprintf(&b, "Respondent: %s\n", rec.RespondentName)
	}
	b.WriteString("Extract the decision details from the attached document(s).")
	return b.String()
}

// buildArbitrationPrompt asks the second model to independently re-derive the
// award from the primary pass's cited evidence. It deliberately does not
// reveal the primary amount.
func buildArbitrationPrompt(rec *model.CaseRecord, primary *model.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case reference: %s\n", rec.Reference)
	fmt.Fprintf(&b, "Hearing date: %s\n", rec.Date.Format("2 January 2006"))
	fmt.Fprintf(&b, "Summary of the decision:\n%s\n\n", primary.Summary)
	if primary.SupportingQuote != "" {
		fmt.Fprintf(&b, "Quoted award text from the decision:\n%q\n\n", primary.SupportingQuote)
	}
	if len(primary.Awards) > 0 {
		b.WriteString("Itemized components found in the decision:\n")
		for _, a := range primary.Awards {
			fmt.Fprintf(&b, "- %s: %.2f\n", a.Label, a.Amount)
		}
		b.WriteString("\n")
	}
	b.WriteString("Determine the total monetary award for this case and respond with the JSON schema.")
	return b.String()
}

// parseExtraction decodes a model reply into an ExtractionResult, tolerating
// a markdown code fence around the JSON.
func parseExtraction(text string) (*model.ExtractionResult, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	// some models lead with prose despite instructions; take the outer object
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}

	var result model.ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, eris.Wrap(err, "verifier: parse extraction result")
	}
	if !result.Outcome.Valid() {
		result.Outcome = model.OutcomeUnknown
	}
	return &result, nil
}
