package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

// routerStore stubs the handful of store methods the control API touches.
// Unimplemented methods panic through the embedded nil interface.
type routerStore struct {
	store.Store
	jobs      []model.Job
	cancelErr error
	cancelled []string
}

func (s *routerStore) ListJobs(_ context.Context, filter store.JobFilter) ([]model.Job, error) {
	var out []model.Job
	for _, j := range s.jobs {
		if filter.SourceType != "" && j.SourceType != filter.SourceType {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *routerStore) GetRunningJob(_ context.Context, source model.SourceType) (*model.Job, error) {
	for _, j := range s.jobs {
		if j.SourceType == source && j.Status == model.JobStatusRunning {
			return &j, nil
		}
	}
	return nil, nil
}

func (s *routerStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	for _, j := range s.jobs {
		if j.ID == id {
			return &j, nil
		}
	}
	return nil, nil
}

func (s *routerStore) CancelJob(_ context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	return nil
}

func newTestRouter(st store.Store) http.Handler {
	return newRouter(context.Background(), &appEnv{Store: st})
}

func TestServeHealth(t *testing.T) {
	r := newTestRouter(&routerStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestServeHarvestUnknownSource(t *testing.T) {
	r := newTestRouter(&routerStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/harvest/bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHarvestConflictWhileRunning(t *testing.T) {
	st := &routerStore{jobs: []model.Job{
		{ID: "j1", SourceType: model.SourceDisputes, Status: model.JobStatusRunning},
	}}
	r := newTestRouter(st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/harvest/disputes", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServeListJobsFiltered(t *testing.T) {
	st := &routerStore{jobs: []model.Job{
		{ID: "j1", SourceType: model.SourceDisputes, Status: model.JobStatusCompleted},
		{ID: "j2", SourceType: model.SourceEnforcement, Status: model.JobStatusFailed},
	}}
	r := newTestRouter(st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?source=enforcement", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "j2", got[0].ID)
}

func TestServeGetJobNotFound(t *testing.T) {
	r := newTestRouter(&routerStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeCancelJob(t *testing.T) {
	st := &routerStore{jobs: []model.Job{
		{ID: "j1", SourceType: model.SourceDisputes, Status: model.JobStatusRunning},
	}}
	r := newTestRouter(st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/j1/cancel", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"j1"}, st.cancelled)
}

func TestServeCancelJobNotRunning(t *testing.T) {
	st := &routerStore{cancelErr: store.ErrNotFound}
	r := newTestRouter(st)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/j1/cancel", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeVerifyUnavailable(t *testing.T) {
	r := newTestRouter(&routerStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
