package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.store.Type(),
	})
}

type baselineEntryResponse struct {
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
	Size      int64  `json:"size,omitempty"`
}

// handleListBaselines lists stored baselines.
func (s *server) handleListBaselines(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list baselines")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	resp := make([]baselineEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, baselineEntryResponse{
			Name:      e.Key,
			UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
			Size:      e.Size,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"baselines": resp})
}

// handleGetBaseline returns one stored baseline.
func (s *server) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	result, err := s.store.Load(r.Context(), name)
	if err != nil {
		s.writeStoreError(w, err, "baseline not found")

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePutBaseline stores the request body as the baseline for {name}.
func (s *server) handlePutBaseline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	result, err := decodeResult(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	if result.BenchmarkName == "" {
		result.BenchmarkName = name
	}

	if result.Key() != baseline.StorageKey(name) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			fmt.Sprintf("benchmark_name %q does not match %q",
				result.BenchmarkName, name),
		})

		return
	}

	if err := s.store.Save(r.Context(), result); err != nil {
		s.log.WithError(err).WithField("baseline", name).
			Error("Failed to save baseline")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	s.metrics.baselinesSaved.Inc()

	s.log.WithField("baseline", result.Key()).Info("Baseline saved")

	writeJSON(w, http.StatusOK, result)
}

// handleDeleteBaseline removes the baseline for {name}.
func (s *server) handleDeleteBaseline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.store.Delete(r.Context(), name); err != nil {
		s.writeStoreError(w, err, "baseline not found")

		return
	}

	s.metrics.baselinesDel.Inc()

	s.log.WithField("baseline", name).Info("Baseline deleted")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompare compares the request body against the stored baseline.
func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	current, err := decodeResult(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	stored, err := s.store.Load(r.Context(), name)
	if err != nil {
		s.writeStoreError(w, err, "no baseline")

		return
	}

	comparison := s.detector.Compare(stored, current)
	s.metrics.comparisons.WithLabelValues(comparison.Status()).Inc()

	writeJSON(w, http.StatusOK, comparison.Export())
}

// writeStoreError maps store errors to responses. notFound is the message
// used for baseline.ErrNotFound.
func (s *server) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, baseline.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{notFound})

		return
	}

	s.log.WithError(err).Error("Baseline store error")
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{"internal error"})
}

func decodeResult(w http.ResponseWriter, r *http.Request) (*baseline.Result, error) {
	var result baseline.Result

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}

	if result.Options == nil {
		result.Options = map[string]any{}
	}

	return &result, nil
}
