// Package resolver consolidates party names across case records and keeps
// per-party aggregate counters consistent with the case-deduplication rule.
package resolver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.English)

// punctuationReplacer strips characters that vary freely between listings of
// the same party ("J. Smith" vs "J Smith", "Acme Property, Ltd").
var punctuationReplacer = strings.NewReplacer(".", "", ",", "", "'", "", "’", "")

// Normalize canonicalizes a party name for the unique-name lookup: lowercase,
// punctuation stripped, whitespace collapsed.
func Normalize(name string) string {
	s := punctuationReplacer.Replace(lower.String(name))
	return strings.Join(strings.Fields(s), " ")
}

// legalSuffixes are trailing corporate designators ignored by the merge key.
// "acme property ltd" and "acme property limited" are the same landlord.
var legalSuffixes = map[string]bool{
	"limited":      true,
	"ltd":          true,
	"incorporated": true,
	"inc":          true,
	"llc":          true,
	"llp":          true,
	"plc":          true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"company":      true,
	"trust":        true,
	"trustee":      true,
	"trustees":     true,
	"partnership":  true,
}

// MergeKey reduces a normalized name to its merge-grouping key by stripping
// trailing legal suffixes. Distinct parties whose names differ only in
// corporate designators collapse to one entity in the offline merge pass.
func MergeKey(normalized string) string {
	fields := strings.Fields(normalized)
	for len(fields) > 1 && legalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
