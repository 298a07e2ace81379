package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/storage"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
	"github.com/tariffscope/tariffscope/pkg/validate"
)

// maxBodySize limits request bodies. Tariff records are tens of KB at
// worst, load profiles a few MB at one-minute resolution.
const maxBodySize = 8 << 20

// decodeRecord reads the request body and normalizes it into a canonical
// API-format record. Accepts a bare record in either dialect or an items
// envelope.
func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	wrapped, err := urdb.ConvertToItems(raw)
	if err != nil {
		return nil, err
	}
	return wrapped["items"].([]any)[0].(map[string]any), nil
}

func (s *Server) handleListTariffs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := s.storage.ListTariffs(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list tariffs", slog.Any("error", err))
		writeJSONError(w, "failed to list tariffs", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []types.TariffSummary{}
	}
	writeJSON(w, summaries)
}

func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	label := r.PathValue("label")

	t, err := s.storage.GetTariff(ctx, label)
	if err != nil {
		if errors.Is(err, storage.ErrTariffNotFound) {
			writeJSONError(w, "tariff not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get tariff", slog.String("label", label), slog.Any("error", err))
		writeJSONError(w, "failed to get tariff", http.StatusInternalServerError)
		return
	}
	writeJSON(w, urdb.TariffToAPI(t))
}

type saveTariffResponse struct {
	Label  string        `json:"label"`
	Issues []types.Issue `json:"issues,omitempty"`
}

func (s *Server) handleSaveTariff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := decodeRecord(w, r)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode tariff record", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := urdb.ParseTariff(record)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if t.Label == "" {
		writeJSONError(w, "tariff label is required", http.StatusBadRequest)
		return
	}

	issues := validate.Validate(t)
	if validate.HasErrors(issues) {
		writeJSON422(w, issues)
		return
	}

	if err := s.storage.SaveTariff(ctx, t); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save tariff", slog.String("label", t.Label), slog.Any("error", err))
		writeJSONError(w, "failed to save tariff", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "saved tariff", slog.String("label", t.Label), slog.String("utility", t.Utility))
	writeJSON(w, saveTariffResponse{Label: t.Label, Issues: issues})
}

func (s *Server) handleDeleteTariff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	label := r.PathValue("label")

	if err := s.storage.DeleteTariff(ctx, label); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete tariff", slog.String("label", label), slog.Any("error", err))
		writeJSONError(w, "failed to delete tariff", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "deleted tariff", slog.String("label", label))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportOpenEI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Label string `json:"label"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Label == "" {
		writeJSONError(w, "label is required", http.StatusBadRequest)
		return
	}

	t, err := s.openei.GetTariff(ctx, req.Label)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to import tariff from openei", slog.String("label", req.Label), slog.Any("error", err))
		writeJSONError(w, "failed to import tariff", http.StatusBadGateway)
		return
	}

	issues := validate.Validate(t)
	if validate.HasErrors(issues) {
		writeJSON422(w, issues)
		return
	}

	if err := s.storage.SaveTariff(ctx, t); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save imported tariff", slog.String("label", t.Label), slog.Any("error", err))
		writeJSONError(w, "failed to save tariff", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "imported tariff from openei", slog.String("label", t.Label), slog.String("utility", t.Utility))
	writeJSON(w, saveTariffResponse{Label: t.Label, Issues: issues})
}

// writeJSON422 reports validation failures. The issues are the response
// body so clients can show every problem at once.
func writeJSON422(w http.ResponseWriter, issues []types.Issue) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(struct {
		Error  string        `json:"error"`
		Issues []types.Issue `json:"issues"`
	}{Error: "tariff failed validation", Issues: issues}); err != nil {
		panic(http.ErrAbortHandler)
	}
}
