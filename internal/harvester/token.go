package harvester

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"
)

// tokenPattern matches the hidden search-token input embedded in the listing
// landing page. The provider offers no formal schema; this is the one stable
// marker observed across both listings.
var tokenPattern = regexp.MustCompile(`(?:id|name)="searchToken"[^>]*value="([^"]+)"`)

// Token fetches the listing landing page and extracts the embedded access
// token. Every refresh call requires it; a failure here aborts the whole run.
func (c *Client) Token(ctx context.Context) (string, error) {
	body, err := c.fetch.Get(ctx, c.landingURL)
	if err != nil {
		return "", eris.Wrap(err, "harvester: fetch landing page")
	}
	m := tokenPattern.FindSubmatch(body)
	if m == nil {
		return "", eris.Errorf("harvester: no access token in landing page %s", c.landingURL)
	}
	return string(m[1]), nil
}
