// Package verifier enriches stored case records with AI-extracted fields and
// cross-checks high-value awards against a second model.
package verifier

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
	"github.com/sells-group/tribunal-cli/pkg/anthropic"
	"github.com/sells-group/tribunal-cli/pkg/openai"
)

// Store is the subset of the document store the verifier needs.
type Store interface {
	ListUnprocessedCases(ctx context.Context, limit int) ([]model.CaseRecord, error)
	UpdateCaseEnrichment(ctx context.Context, caseID string, upd store.EnrichmentUpdate) error
}

// Options tunes extraction and arbitration.
type Options struct {
	PrimaryModel    string
	PrimaryTokens   int64
	ArbiterModel    string
	ArbiterTokens   int
	// HighValueThreshold is the award size above which a second model must
	// agree before the amount is persisted unchallenged.
	HighValueThreshold float64
	// SumTolerance bounds both the itemized-sum check and the arbitration
	// disagreement check.
	SumTolerance float64
	Concurrency  int
}

// Verifier runs the per-case enrichment pipeline.
type Verifier struct {
	store   Store
	docs    DocumentFetcher
	primary anthropic.Client
	arbiter openai.Client
	opts    Options

	// Recompute, when set, refreshes party award aggregates after a batch
	// that enriched at least one case.
	Recompute func(ctx context.Context) error
}

// New creates a Verifier. The arbiter client may be nil; high-value cases are
// then persisted with a warning instead of being cross-checked.
func New(s Store, docs DocumentFetcher, primary anthropic.Client, arbiter openai.Client, opts Options) *Verifier {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.PrimaryTokens <= 0 {
		opts.PrimaryTokens = 2048
	}
	if opts.ArbiterTokens <= 0 {
		opts.ArbiterTokens = 2048
	}
	if opts.SumTolerance <= 0 {
		opts.SumTolerance = 1.0
	}
	return &Verifier{store: s, docs: docs, primary: primary, arbiter: arbiter, opts: opts}
}

// ProcessCase extracts, gates, and persists the AI fields for one case. The
// record is marked processed whether the extraction succeeded, was gated, or
// failed outright; failures are recorded as an error string so the case never
// automatically re-enters the queue. Only store failures return an error and
// leave the record unprocessed.
func (v *Verifier) ProcessCase(ctx context.Context, rec *model.CaseRecord) error {
	log := zap.L().With(zap.String("reference", rec.Reference))

	if len(rec.Documents) == 0 {
		log.Info("no attached documents, marking processed")
		return v.persist(ctx, rec.ID, store.EnrichmentUpdate{
			ProcessedAt: time.Now().UTC(),
			Error:       "no attached documents",
		})
	}

	docs, err := v.docs.Fetch(ctx, rec)
	if err != nil {
		return eris.Wrapf(err, "verifier: fetch documents for %s", rec.Reference)
	}
	if len(docs) == 0 {
		log.Warn("no readable documents, marking processed")
		return v.persist(ctx, rec.ID, store.EnrichmentUpdate{
			ProcessedAt: time.Now().UTC(),
			Error:       "documents unreadable",
		})
	}

	result, err := v.extract(ctx, rec, docs)
	if err != nil {
		// persist the failure so the case leaves the retry queue instead of
		// re-spending a model call on every subsequent batch
		log.Warn("extraction failed, marking processed", zap.Error(err))
		return v.persist(ctx, rec.ID, store.EnrichmentUpdate{
			ProcessedAt: time.Now().UTC(),
			Error:       err.Error(),
		})
	}

	upd := store.EnrichmentUpdate{
		Summary:         result.Summary,
		Outcome:         result.Outcome,
		CostAmount:      result.CostAmount,
		PropertyAddress: result.PropertyAddress,
		Category:        result.Category,
		ProcessedAt:     time.Now().UTC(),
	}

	amount := result.CompensationAmount
	switch {
	case amount == nil:
		// nothing to gate
	case !result.Confident:
		log.Info("amount dropped: model not confident",
			zap.Float64("amount", *amount))
		amount = nil
	case !result.SumConsistent(v.opts.SumTolerance):
		log.Warn("amount dropped: itemized sum mismatch",
			zap.Float64("amount", *amount),
			zap.Float64("itemized_sum", result.AwardSum()))
		amount = nil
	}

	// the high-value check uses the extracted figure even if a gate dropped
	// it: a large disputed amount is exactly the case worth a second opinion
	if result.CompensationAmount != nil && *result.CompensationAmount >= v.opts.HighValueThreshold && v.opts.HighValueThreshold > 0 {
		amount = v.arbitrate(ctx, rec, result, amount, log)
	}

	upd.CompensationAmount = amount
	return v.persist(ctx, rec.ID, upd)
}

// extract runs the primary model over the case documents.
func (v *Verifier) extract(ctx context.Context, rec *model.CaseRecord, docs [][]byte) (*model.ExtractionResult, error) {
	msgDocs := make([]anthropic.Document, len(docs))
	for i, d := range docs {
		msgDocs[i] = anthropic.Document{Data: d}
	}

	resp, err := v.primary.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.opts.PrimaryModel,
		MaxTokens: v.opts.PrimaryTokens,
		System: []anthropic.SystemBlock{{
			Text:         extractionSystemPrompt,
			CacheControl: &anthropic.CacheControl{},
		}},
		Messages: []anthropic.Message{{
			Role:      "user",
			Content:   buildUserPrompt(rec),
			Documents: msgDocs,
		}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "verifier: primary extraction for %s", rec.Reference)
	}
	resp.Usage.LogCost(v.opts.PrimaryModel, "extraction")

	result, err := parseExtraction(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "verifier: primary extraction for %s", rec.Reference)
	}
	return result, nil
}

// arbitrate asks the second model to re-derive a high-value award. When the
// two models disagree beyond tolerance the arbiter's figure supersedes the
// primary's; an arbitration failure keeps the gated primary amount.
func (v *Verifier) arbitrate(ctx context.Context, rec *model.CaseRecord, primary *model.ExtractionResult, gated *float64, log *zap.Logger) *float64 {
	if v.arbiter == nil {
		log.Warn("high-value award without arbitration: no arbiter configured",
			zap.Float64("amount", *primary.CompensationAmount))
		return gated
	}

	resp, err := v.arbiter.CreateCompletion(ctx, openai.Request{
		Model:     v.opts.ArbiterModel,
		MaxTokens: v.opts.ArbiterTokens,
		System:    extractionSystemPrompt,
		User:      buildArbitrationPrompt(rec, primary),
	})
	if err != nil {
		log.Warn("arbitration call failed, keeping primary amount", zap.Error(err))
		return gated
	}
	resp.Usage.LogCost(v.opts.ArbiterModel, "arbitration")

	second, err := parseExtraction(resp.Text)
	if err != nil {
		log.Warn("arbitration reply unparseable, keeping primary amount", zap.Error(err))
		return gated
	}
	if second.CompensationAmount == nil {
		log.Warn("arbiter found no award for high-value case, dropping amount",
			zap.Float64("primary_amount", *primary.CompensationAmount))
		return nil
	}

	if math.Abs(*second.CompensationAmount-*primary.CompensationAmount) > v.opts.SumTolerance {
		log.Warn("models disagree on high-value award, arbiter supersedes",
			zap.Float64("primary_amount", *primary.CompensationAmount),
			zap.Float64("arbiter_amount", *second.CompensationAmount))
		return second.CompensationAmount
	}
	// agreement confirms the extraction but does not override the gates: a
	// low-confidence or sum-inconsistent amount stays withheld
	return gated
}

func (v *Verifier) persist(ctx context.Context, caseID string, upd store.EnrichmentUpdate) error {
	if err := v.store.UpdateCaseEnrichment(ctx, caseID, upd); err != nil {
		return eris.Wrapf(err, "verifier: persist enrichment for %s", caseID)
	}
	return nil
}
