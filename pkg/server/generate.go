package server

import (
	"encoding/json"
	"net/http"

	"github.com/tariffscope/tariffscope/pkg/profile"
	"github.com/tariffscope/tariffscope/pkg/types"
)

type generateRequest struct {
	Label  string         `json:"label,omitempty"`
	Tariff map[string]any `json:"tariff,omitempty"`

	Config profile.GeneratorConfig `json:"config"`
}

// handleGenerate synthesizes a load profile shaped by the tariff's energy
// schedule. With ?format=csv the response is the CSV encoding, otherwise
// the samples are returned as JSON.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, ok := s.resolveTariff(w, r, req.Label, req.Tariff)
	if !ok {
		return
	}

	lp, err := profile.Generate(t.EnergySchedule, req.Config)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="profile.csv"`)
		if err := profile.WriteCSV(w, lp); err != nil {
			panic(http.ErrAbortHandler)
		}
		return
	}
	writeJSON(w, struct {
		Samples []types.Sample `json:"samples"`
	}{Samples: lp.Samples})
}
