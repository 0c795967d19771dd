// Package harvester pages through the tribunal listing service, turning each
// HTML result fragment into structured case records.
package harvester

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal-cli/internal/config"
	"github.com/sells-group/tribunal-cli/internal/fetcher"
	"github.com/sells-group/tribunal-cli/internal/model"
)

// refreshEnvelope is the JSON wrapper around each listing page. Only the
// fields we read are declared; the provider guarantees no schema.
type refreshEnvelope struct {
	Fragment string `json:"fragment"`
	Pager    struct {
		TotalPages int `json:"totalPages"`
		TotalRows  int `json:"totalRows"`
	} `json:"pager"`
}

// Page is one decoded listing page.
type Page struct {
	Number     int
	TotalPages int
	TotalRows  int
	Records    []model.CaseRecord
}

// Client calls the listing landing and refresh endpoints for one source type.
type Client struct {
	fetch      fetcher.Fetcher
	landingURL string
	refreshURL string
	template   string
	facets     string
	source     model.SourceType
}

// NewClient builds a listing client for the given source type. The fetcher
// should be constructed without internal retries; retry policy for listing
// pages lives in the Harvester, which counts whole-page failures.
func NewClient(f fetcher.Fetcher, src config.SourceConfig, source model.SourceType) (*Client, error) {
	template := src.DisputesTemplate
	if source == model.SourceEnforcement {
		template = src.EnforcementTemplate
	}
	if template == "" {
		return nil, eris.Errorf("harvester: no listing template configured for %s", source)
	}
	return &Client{
		fetch:      f,
		landingURL: src.LandingURL,
		refreshURL: src.RefreshURL,
		template:   template,
		facets:     "decisions:published",
		source:     source,
	}, nil
}

// FetchPage posts one refresh call and parses the returned fragment.
func (c *Client) FetchPage(ctx context.Context, token string, page int) (*Page, error) {
	form := url.Values{
		"token":    {token},
		"page":     {strconv.Itoa(page)},
		"template": {c.template},
		"facets":   {c.facets},
	}
	body, err := c.fetch.PostForm(ctx, c.refreshURL, form)
	if err != nil {
		return nil, eris.Wrapf(err, "harvester: refresh page %d", page)
	}

	var env refreshEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "harvester: decode refresh envelope for page %d", page)
	}

	records, err := parseFragment(env.Fragment, c.source)
	if err != nil {
		return nil, eris.Wrapf(err, "harvester: parse page %d", page)
	}

	return &Page{
		Number:     page,
		TotalPages: env.Pager.TotalPages,
		TotalRows:  env.Pager.TotalRows,
		Records:    records,
	}, nil
}
