package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tariffscope/tariffscope/pkg/billing"
	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/profile"
	"github.com/tariffscope/tariffscope/pkg/storage"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
)

// sampleRequest is the wire form of a load sample. EnergyKWH is a pointer
// so a measured zero is distinguishable from an absent value.
type sampleRequest struct {
	Timestamp time.Time `json:"timestamp"`
	DemandKW  float64   `json:"demandKW"`
	EnergyKWH *float64  `json:"energyKWH,omitempty"`
}

type calculateRequest struct {
	// Label selects a stored tariff; Tariff is an inline record in any
	// dialect. Exactly one must be set.
	Label  string         `json:"label,omitempty"`
	Tariff map[string]any `json:"tariff,omitempty"`

	// Samples and CSV are alternative profile encodings.
	Samples []sampleRequest `json:"samples,omitempty"`
	CSV     string          `json:"csv,omitempty"`
}

// resolveTariff loads the tariff named by the request, either from
// storage by label or from the inline record. Writes the error response
// itself and returns false on failure.
func (s *Server) resolveTariff(w http.ResponseWriter, r *http.Request, label string, record map[string]any) (types.Tariff, bool) {
	ctx := r.Context()
	switch {
	case label != "" && record != nil:
		writeJSONError(w, "provide either label or tariff, not both", http.StatusBadRequest)
		return types.Tariff{}, false
	case label != "":
		t, err := s.storage.GetTariff(ctx, label)
		if err != nil {
			if errors.Is(err, storage.ErrTariffNotFound) {
				writeJSONError(w, "tariff not found", http.StatusNotFound)
				return types.Tariff{}, false
			}
			log.Ctx(ctx).ErrorContext(ctx, "failed to get tariff", slog.String("label", label), slog.Any("error", err))
			writeJSONError(w, "failed to get tariff", http.StatusInternalServerError)
			return types.Tariff{}, false
		}
		return t, true
	case record != nil:
		converted, err := urdb.ToAPIFormat(record)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return types.Tariff{}, false
		}
		t, err := urdb.ParseTariff(converted)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return types.Tariff{}, false
		}
		return t, true
	}
	writeJSONError(w, "label or tariff is required", http.StatusBadRequest)
	return types.Tariff{}, false
}

func (req *calculateRequest) loadProfile() (types.LoadProfile, error) {
	if req.CSV != "" {
		return profile.ParseCSV(strings.NewReader(req.CSV))
	}
	lp := types.LoadProfile{Samples: make([]types.Sample, 0, len(req.Samples))}
	for _, s := range req.Samples {
		sample := types.Sample{
			Timestamp: s.Timestamp,
			DemandKW:  s.DemandKW,
		}
		if s.EnergyKWH != nil {
			sample.EnergyKWH = *s.EnergyKWH
			sample.HasEnergy = true
		}
		lp.Samples = append(lp.Samples, sample)
	}
	if !lp.Sorted() {
		lp.Sort()
	}
	return lp, nil
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Samples) == 0 && req.CSV == "" {
		writeJSONError(w, "samples or csv is required", http.StatusBadRequest)
		return
	}

	t, ok := s.resolveTariff(w, r, req.Label, req.Tariff)
	if !ok {
		return
	}

	lp, err := req.loadProfile()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	breakdown, err := billing.Calculate(t, lp)
	if err != nil {
		var calcErr *billing.CalculationError
		if errors.As(err, &calcErr) {
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "bill calculation failed", slog.Any("error", err))
		writeJSONError(w, "bill calculation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, breakdown)
}
