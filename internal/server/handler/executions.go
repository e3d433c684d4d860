package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

// ExecutionHandler serves the execution history API.
type ExecutionHandler struct {
	store  domain.ExecutionStore
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler. The store may be nil when
// persistence is disabled.
func NewExecutionHandler(store domain.ExecutionStore, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{store: store, logger: logger}
}

// GetExecution returns a single recorded execution by ID.
// GET /api/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution store is not configured")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing execution id")
		return
	}

	res, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "executions: get failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListExecutions returns recorded executions, newest first.
// GET /api/executions?limit=&offset=&since=&until=
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution store is not configured")
		return
	}

	opts := parseListOpts(r)

	results, err := h.store.List(r.Context(), opts)
	if err != nil {
		if errors.Is(err, domain.ErrStoreDisabled) {
			writeError(w, http.StatusServiceUnavailable, "execution store is not configured")
			return
		}
		h.logger.ErrorContext(r.Context(), "executions: list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	if results == nil {
		results = []domain.ExecutionResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": results,
		"count":      len(results),
	})
}
