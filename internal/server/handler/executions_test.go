package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

type fakeStore struct {
	results []domain.ExecutionResult
	opts    domain.ListOpts
}

func (f *fakeStore) Record(context.Context, domain.ExecutionResult) error { return nil }

func (f *fakeStore) Get(_ context.Context, id string) (domain.ExecutionResult, error) {
	for _, res := range f.results {
		if res.ID == id {
			return res, nil
		}
	}
	return domain.ExecutionResult{}, domain.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, opts domain.ListOpts) ([]domain.ExecutionResult, error) {
	f.opts = opts
	return f.results, nil
}

func TestListExecutions_StoreDisabled(t *testing.T) {
	h := NewExecutionHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ListExecutions(rec, httptest.NewRequest(http.MethodGet, "/api/executions", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListExecutions_PaginationParams(t *testing.T) {
	store := &fakeStore{results: []domain.ExecutionResult{{ID: "r1"}, {ID: "r2"}}}
	h := NewExecutionHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ListExecutions(rec, httptest.NewRequest(http.MethodGet, "/api/executions?limit=7&offset=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, store.opts.Limit)
	assert.Equal(t, 3, store.opts.Offset)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestGetExecution(t *testing.T) {
	store := &fakeStore{results: []domain.ExecutionResult{{ID: "r1", Symbol: "BTCUSDT"}}}
	h := NewExecutionHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/executions/"+id, nil)
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		h.GetExecution(rec, req)
		return rec
	}

	t.Run("found", func(t *testing.T) {
		rec := get("r1")
		require.Equal(t, http.StatusOK, rec.Code)

		var res domain.ExecutionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "BTCUSDT", res.Symbol)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("nope").Code)
	})
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Epoch  int64  `json:"epoch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Positive(t, resp.Epoch)
}
