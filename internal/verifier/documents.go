package verifier

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/fetcher"
	"github.com/sells-group/tribunal-cli/internal/model"
)

// DocumentFetcher retrieves the decision documents for a case.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rec *model.CaseRecord) ([][]byte, error)
}

// Documents fetches case documents, preferring a mirrored archive keyed by
// source type and reference over the tribunal's own (slower, occasionally
// dead) document URLs.
type Documents struct {
	fetch fetcher.Fetcher
	// ArchiveBaseURL, when set, is tried first: <base>/<source>/<reference>.pdf
	archiveBaseURL string
	// minBytes rejects short responses: the tribunal serves styled error
	// pages with a 200 status, and those are always smaller than a real
	// decision PDF.
	minBytes int
}

// NewDocuments creates a document fetcher.
func NewDocuments(f fetcher.Fetcher, archiveBaseURL string, minBytes int) *Documents {
	if minBytes <= 0 {
		minBytes = 2048
	}
	return &Documents{fetch: f, archiveBaseURL: archiveBaseURL, minBytes: minBytes}
}

// archiveKey is the deterministic archive path for a case.
func archiveKey(rec *model.CaseRecord) string {
	ref := strings.ToLower(strings.ReplaceAll(rec.Reference, " ", "-"))
	return fmt.Sprintf("%s/%s.pdf", rec.SourceType, url.PathEscape(ref))
}

// Fetch returns every readable document for the case: the archived copy if
// present, otherwise each attached source URL that passes the size check.
// A case with no readable documents yields an empty slice, not an error.
func (d *Documents) Fetch(ctx context.Context, rec *model.CaseRecord) ([][]byte, error) {
	if d.archiveBaseURL != "" {
		archiveURL := strings.TrimRight(d.archiveBaseURL, "/") + "/" + archiveKey(rec)
		if body, err := d.fetch.Get(ctx, archiveURL); err == nil && len(body) >= d.minBytes {
			return [][]byte{body}, nil
		}
	}

	var docs [][]byte
	for _, link := range rec.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := d.fetch.Get(ctx, link.URL)
		if err != nil {
			zap.L().Warn("document fetch failed",
				zap.String("reference", rec.Reference),
				zap.String("url", link.URL),
				zap.Error(err),
			)
			continue
		}
		if len(body) < d.minBytes {
			zap.L().Warn("document below size threshold, treating as error page",
				zap.String("reference", rec.Reference),
				zap.String("url", link.URL),
				zap.Int("bytes", len(body)),
			)
			continue
		}
		docs = append(docs, body)
	}
	return docs, nil
}
