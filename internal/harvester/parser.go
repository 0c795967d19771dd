package harvester

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/tribunal-cli/internal/model"
)

// versusPattern separates the applicant side from the respondent side of the
// party line, e.g. "J Smith (Tenant) v P Jones (Landlord)".
var versusPattern = regexp.MustCompile(`(?i)\s+vs?\.?\s+`)

// partyTypePattern captures a trailing parenthesised party classification.
var partyTypePattern = regexp.MustCompile(`(?i)\s*\((landlord|tenant)s?\)\s*$`)

// dateFormats are tried in order; the listing has been seen using all of them.
var dateFormats = []string{
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// parseFragment walks the listing HTML fragment and produces one record per
// result item. Missing optional fields (reference, date, parties) yield zero
// values rather than errors; the listing regularly publishes partial rows.
func parseFragment(fragment string, source model.SourceType) ([]model.CaseRecord, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, eris.Wrap(err, "harvester: parse fragment")
	}

	var records []model.CaseRecord
	for _, root := range nodes {
		walk(root, func(n *html.Node) {
			if hasClass(n, "search-result") {
				records = append(records, parseResult(n, source))
			}
		})
	}
	return records, nil
}

// parseResult extracts one case record from a result item node.
func parseResult(n *html.Node, source model.SourceType) model.CaseRecord {
	rec := model.CaseRecord{
		SourceType:     source,
		ApplicantType:  model.PartyUnknown,
		RespondentType: model.PartyUnknown,
	}

	var buf strings.Builder
	html.Render(&buf, n) //nolint:errcheck
	rec.RawHTML = buf.String()

	walk(n, func(child *html.Node) {
		switch {
		case hasClass(child, "result-reference"):
			rec.Reference = collapseSpace(textContent(child))
		case hasClass(child, "result-heading"):
			rec.Heading = collapseSpace(textContent(child))
		case hasClass(child, "result-date"):
			rec.Date = parseDate(collapseSpace(textContent(child)))
		case hasClass(child, "result-parties"):
			parseParties(collapseSpace(textContent(child)), &rec)
		case hasClass(child, "result-docs"):
			rec.Documents = append(rec.Documents, parseDocLinks(child)...)
		}
	})

	if rec.Reference == "" {
		zap.L().Warn("harvester: result item without reference",
			zap.String("source", string(source)),
			zap.String("heading", rec.Heading),
		)
	}
	return rec
}

// parseParties splits "A (Tenant) v B (Landlord)" into the applicant and
// respondent fields. A line without the separator is kept whole as the
// applicant; party classifications default to unknown.
func parseParties(line string, rec *model.CaseRecord) {
	sides := versusPattern.Split(line, 2)
	rec.ApplicantName, rec.ApplicantType = parsePartySide(sides[0])
	if len(sides) == 2 {
		rec.RespondentName, rec.RespondentType = parsePartySide(sides[1])
	}
}

func parsePartySide(side string) (string, model.PartyType) {
	ptype := model.PartyUnknown
	if m := partyTypePattern.FindStringSubmatch(side); m != nil {
		ptype = model.PartyType(strings.ToLower(m[1]))
		side = partyTypePattern.ReplaceAllString(side, "")
	}
	return strings.TrimSpace(side), ptype
}

func parseDocLinks(n *html.Node) []model.DocumentLink {
	var links []model.DocumentLink
	walk(n, func(child *html.Node) {
		if child.Type == html.ElementNode && child.DataAtom == atom.A {
			if href := attr(child, "href"); href != "" {
				links = append(links, model.DocumentLink{
					Title: collapseSpace(textContent(child)),
					URL:   href,
				})
			}
		}
	})
	return links
}

func parseDate(s string) time.Time {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if s != "" {
		zap.L().Debug("harvester: unparseable date", zap.String("value", s))
	}
	return time.Time{}
}

// --- node helpers ---

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
	})
	return buf.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
