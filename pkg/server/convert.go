package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
	"github.com/tariffscope/tariffscope/pkg/validate"
)

type convertResponse struct {
	Format urdb.Format    `json:"format"`
	Record map[string]any `json:"record"`
}

// handleConvert normalizes a tariff record from any dialect into the
// canonical API format. With ?wrap=items the response is the items
// envelope instead of the bare record.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record := raw
	if items, ok := raw["items"].([]any); ok && len(items) > 0 {
		if first, ok := items[0].(map[string]any); ok {
			record = first
		}
	}
	format := urdb.DetectFormat(record)

	converted, err := urdb.ToAPIFormat(record)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to convert record", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("wrap") == "items" {
		writeJSON(w, map[string]any{"items": []any{converted}})
		return
	}
	writeJSON(w, convertResponse{Format: format, Record: converted})
}

type validateResponse struct {
	Valid  bool          `json:"valid"`
	Issues []types.Issue `json:"issues"`
}

// handleValidate normalizes and decodes a tariff record, then reports
// every validation issue. Decode failures are 400s since there is no
// tariff to report issues against.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := urdb.ParseTariff(record)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	issues := validate.Validate(t)
	if issues == nil {
		issues = []types.Issue{}
	}
	writeJSON(w, validateResponse{Valid: !validate.HasErrors(issues), Issues: issues})
}
