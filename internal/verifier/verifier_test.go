package verifier

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
	"github.com/sells-group/tribunal-cli/pkg/anthropic"
	"github.com/sells-group/tribunal-cli/pkg/openai"
)

func fptr(v float64) *float64 { return &v }

// fakeVStore records enrichment updates.
type fakeVStore struct {
	mu      sync.Mutex
	queue   []model.CaseRecord
	updates map[string]store.EnrichmentUpdate
	listErr error
}

func newFakeVStore(queue ...model.CaseRecord) *fakeVStore {
	return &fakeVStore{queue: queue, updates: map[string]store.EnrichmentUpdate{}}
}

func (f *fakeVStore) ListUnprocessedCases(ctx context.Context, limit int) ([]model.CaseRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CaseRecord
	for _, rec := range f.queue {
		if _, done := f.updates[rec.ID]; done {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeVStore) UpdateCaseEnrichment(ctx context.Context, caseID string, upd store.EnrichmentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[caseID] = upd
	return nil
}

// fakeDocs serves fixed document bytes per case id.
type fakeDocs struct {
	byCase map[string][][]byte
}

func (f *fakeDocs) Fetch(ctx context.Context, rec *model.CaseRecord) ([][]byte, error) {
	return f.byCase[rec.ID], nil
}

// fakePrimary returns a canned extraction result.
type fakePrimary struct {
	result *model.ExtractionResult
	err    error
	calls  atomic.Int64
}

func (f *fakePrimary) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(f.result)
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: string(body)}},
	}, nil
}

// fakeArbiter returns a canned arbitration result.
type fakeArbiter struct {
	result *model.ExtractionResult
	err    error
	calls  atomic.Int64
}

func (f *fakeArbiter) CreateCompletion(ctx context.Context, req openai.Request) (*openai.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(f.result)
	return &openai.Response{Text: string(body)}, nil
}

func docCase(id string) model.CaseRecord {
	return model.CaseRecord{
		ID:         id,
		SourceType: model.SourceDisputes,
		Reference:  "DR0100",
		Date:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Documents:  []model.DocumentLink{{URL: "https://example.test/dr0100.pdf"}},
	}
}

func newVerifier(s *fakeVStore, docs DocumentFetcher, p *fakePrimary, a *fakeArbiter) *Verifier {
	var arbiter openai.Client
	if a != nil {
		arbiter = a
	}
	return New(s, docs, p, arbiter, Options{
		PrimaryModel:       "claude-sonnet-4-5-20250929",
		ArbiterModel:       "gpt-4o",
		HighValueThreshold: 5000,
		SumTolerance:       1.0,
		Concurrency:        2,
	})
}

func TestProcessCaseNoAttachedDocuments(t *testing.T) {
	rec := docCase("case-1")
	rec.Documents = nil
	s := newFakeVStore()
	primary := &fakePrimary{}
	v := newVerifier(s, &fakeDocs{}, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	upd := s.updates["case-1"]
	assert.Equal(t, "no attached documents", upd.Error)
	assert.False(t, upd.ProcessedAt.IsZero())
	assert.Zero(t, primary.calls.Load())
}

func TestProcessCaseUnreadableDocuments(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	primary := &fakePrimary{}
	v := newVerifier(s, &fakeDocs{}, primary, nil) // fetch yields nothing

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	assert.Equal(t, "documents unreadable", s.updates["case-1"].Error)
	assert.Zero(t, primary.calls.Load())
}

func TestProcessCaseStoresConfidentAmount(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Summary:            "Tenant awarded compensation.",
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(1850),
		Confident:          true,
		Category:           "rent arrears",
		PropertyAddress:    "12 Example St",
	}}
	v := newVerifier(s, docs, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	upd := s.updates["case-1"]
	require.NotNil(t, upd.CompensationAmount)
	assert.InDelta(t, 1850, *upd.CompensationAmount, 0.001)
	assert.Equal(t, model.OutcomeGranted, upd.Outcome)
	assert.Equal(t, "rent arrears", upd.Category)
	assert.Empty(t, upd.Error)
}

func TestProcessCaseConfidenceGateNullsAmount(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Summary:            "Unclear award.",
		Outcome:            model.OutcomePartiallyGranted,
		CompensationAmount: fptr(900),
		Confident:          false,
	}}
	v := newVerifier(s, docs, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	upd := s.updates["case-1"]
	assert.Nil(t, upd.CompensationAmount)
	// the rest of the extraction is still persisted
	assert.Equal(t, "Unclear award.", upd.Summary)
	assert.False(t, upd.ProcessedAt.IsZero())
}

func TestProcessCaseSumMismatchNullsAmount(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Summary:            "Itemization does not add up.",
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(2000),
		Confident:          true,
		Awards: []model.ItemizedAward{
			{Label: "bond refund", Amount: 800},
			{Label: "cleaning", Amount: 150},
		},
	}}
	v := newVerifier(s, docs, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	assert.Nil(t, s.updates["case-1"].CompensationAmount)
}

func TestProcessCaseSumWithinToleranceKept(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(950.50),
		Confident:          true,
		Awards: []model.ItemizedAward{
			{Label: "bond refund", Amount: 800},
			{Label: "cleaning", Amount: 150},
		},
	}}
	v := newVerifier(s, docs, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	require.NotNil(t, s.updates["case-1"].CompensationAmount)
	assert.InDelta(t, 950.50, *s.updates["case-1"].CompensationAmount, 0.001)
}

func TestProcessCaseHighValueDisagreementArbiterSupersedes(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(12500),
		Confident:          true,
		SupportingQuote:    "the landlord shall pay the sum of $12,050.00",
	}}
	arbiter := &fakeArbiter{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(12050),
		Confident:          true,
	}}
	v := newVerifier(s, docs, primary, arbiter)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	assert.EqualValues(t, 1, arbiter.calls.Load())
	require.NotNil(t, s.updates["case-1"].CompensationAmount)
	assert.InDelta(t, 12050, *s.updates["case-1"].CompensationAmount, 0.001)
}

func TestProcessCaseHighValueAgreementKeepsPrimary(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(8000),
		Confident:          true,
	}}
	arbiter := &fakeArbiter{result: &model.ExtractionResult{
		CompensationAmount: fptr(8000.50),
		Confident:          true,
	}}
	v := newVerifier(s, docs, primary, arbiter)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	require.NotNil(t, s.updates["case-1"].CompensationAmount)
	assert.InDelta(t, 8000, *s.updates["case-1"].CompensationAmount, 0.001)
}

func TestProcessCaseHighValueAgreementDoesNotOverrideGates(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	// low confidence nulls the amount, but its size still triggers the check
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(9000),
		Confident:          false,
	}}
	arbiter := &fakeArbiter{result: &model.ExtractionResult{
		CompensationAmount: fptr(9000),
		Confident:          true,
	}}
	v := newVerifier(s, docs, primary, arbiter)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	assert.EqualValues(t, 1, arbiter.calls.Load())
	assert.Nil(t, s.updates["case-1"].CompensationAmount)
}

func TestProcessCaseBelowThresholdSkipsArbitration(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(1200),
		Confident:          true,
	}}
	arbiter := &fakeArbiter{}
	v := newVerifier(s, docs, primary, arbiter)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	assert.Zero(t, arbiter.calls.Load())
}

func TestProcessCaseArbitrationFailureKeepsPrimary(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:            model.OutcomeGranted,
		CompensationAmount: fptr(7500),
		Confident:          true,
	}}
	arbiter := &fakeArbiter{err: eris.New("rate limited")}
	v := newVerifier(s, docs, primary, arbiter)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	require.NotNil(t, s.updates["case-1"].CompensationAmount)
	assert.InDelta(t, 7500, *s.updates["case-1"].CompensationAmount, 0.001)
}

func TestParseExtractionWithCodeFence(t *testing.T) {
	result, err := parseExtraction("```json\n{\"summary\":\"ok\",\"outcome\":\"granted\",\"confident\":true}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Summary)
	assert.Equal(t, model.OutcomeGranted, result.Outcome)
}

func TestParseExtractionInvalidOutcomeFallsBack(t *testing.T) {
	result, err := parseExtraction(`{"summary":"ok","outcome":"settled"}`)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnknown, result.Outcome)
}

func TestBatchRecomputesAfterSuccesses(t *testing.T) {
	s := newFakeVStore(docCase("case-1"), docCase("case-2"))
	docs := &fakeDocs{byCase: map[string][][]byte{
		"case-1": {[]byte("%PDF...")},
		"case-2": {[]byte("%PDF...")},
	}}
	primary := &fakePrimary{result: &model.ExtractionResult{
		Outcome:   model.OutcomeGranted,
		Confident: true,
	}}
	v := newVerifier(s, docs, primary, nil)

	recomputed := false
	v.Recompute = func(ctx context.Context) error {
		recomputed = true
		return nil
	}

	result, err := v.Batch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, 2, result.Succeeded)
	assert.True(t, recomputed)
}

func TestProcessCaseExtractionFailureMarksProcessed(t *testing.T) {
	rec := docCase("case-1")
	s := newFakeVStore()
	docs := &fakeDocs{byCase: map[string][][]byte{"case-1": {[]byte("%PDF...")}}}
	primary := &fakePrimary{err: eris.New("model unavailable")}
	v := newVerifier(s, docs, primary, nil)

	require.NoError(t, v.ProcessCase(context.Background(), &rec))
	upd := s.updates["case-1"]
	assert.Contains(t, upd.Error, "model unavailable")
	assert.False(t, upd.ProcessedAt.IsZero())
	assert.Nil(t, upd.CompensationAmount)
	assert.Empty(t, upd.Summary)
}

func TestBatchExtractionFailuresDoNotReenter(t *testing.T) {
	s := newFakeVStore(docCase("case-1"), docCase("case-2"))
	docs := &fakeDocs{byCase: map[string][][]byte{
		"case-1": {[]byte("%PDF...")},
		"case-2": {[]byte("%PDF...")},
	}}
	primary := &fakePrimary{err: eris.New("model unavailable")}
	v := newVerifier(s, docs, primary, nil)

	result, err := v.Batch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	// the failures are recorded on the case rows, not left for retry
	assert.Len(t, s.updates, 2)
	for _, upd := range s.updates {
		assert.Contains(t, upd.Error, "model unavailable")
	}

	// a second batch selects nothing and spends no further model calls
	result, err = v.Batch(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, result.Selected)
	assert.EqualValues(t, 2, primary.calls.Load())
}

func TestBatchWithoutCredentialsReturnsImmediately(t *testing.T) {
	s := newFakeVStore(docCase("case-1"))
	v := New(s, &fakeDocs{}, nil, nil, Options{})

	_, err := v.Batch(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
	assert.Empty(t, s.updates)
}

func TestBatchRecomputeSkippedWhenNothingSucceeded(t *testing.T) {
	s := newFakeVStore()
	primary := &fakePrimary{}
	v := newVerifier(s, &fakeDocs{}, primary, nil)

	called := false
	v.Recompute = func(ctx context.Context) error { called = true; return nil }

	result, err := v.Batch(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, result.Selected)
	assert.False(t, called)
}
