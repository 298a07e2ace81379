package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tariffscope/tariffscope/pkg/types"
)

func localRecord() map[string]any {
	record := map[string]any{
		"_id":         map[string]any{"$oid": "5d1a9a935457a3ae0d6ed1b4"},
		"utilityName": "Pacific Gas & Electric Co",
		"rateName":    "E-19 Medium General Service",
		"description": "medium general demand-metered service",
		"sector":      "Commercial",
		"energyRateStrux": []any{
			map[string]any{
				"energyRateTiers": []any{map[string]any{"rate": 0.1, "unit": "kWh"}},
			},
		},
		"energyWeekdaySched": flatScheduleRows(),
		"energyWeekendSched": flatScheduleRows(),
	}
	return record
}

func TestHandleConvert(t *testing.T) {
	_, h := newTestServer(&mockStorage{})

	t.Run("LocalToAPI", func(t *testing.T) {
		w := postJSON(t, h, "/api/convert", localRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp struct {
			Format string         `json:"format"`
			Record map[string]any `json:"record"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "local", resp.Format)
		assert.Equal(t, "Pacific Gas & Electric Co", resp.Record["utility"])
		assert.Equal(t, "5d1a9a935457a3ae0d6ed1b4", resp.Record["label"])
		// nested tiers flattened
		tiers := resp.Record["energyratestructure"].([]any)
		firstPeriod := tiers[0].([]any)
		tier := firstPeriod[0].(map[string]any)
		assert.Equal(t, 0.1, tier["rate"])
	})

	t.Run("APIPassesThrough", func(t *testing.T) {
		w := postJSON(t, h, "/api/convert", apiRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp struct {
			Format string         `json:"format"`
			Record map[string]any `json:"record"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "api", resp.Format)
		assert.Equal(t, "Pacific Gas & Electric Co", resp.Record["utility"])
	})

	t.Run("WrapItems", func(t *testing.T) {
		w := postJSON(t, h, "/api/convert?wrap=items", localRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		items, ok := resp["items"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
	})

	t.Run("MalformedDate", func(t *testing.T) {
		record := localRecord()
		record["effectiveDate"] = map[string]any{"$date": "not-a-date"}
		w := postJSON(t, h, "/api/convert", record)
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	})
}

func TestHandleValidate(t *testing.T) {
	_, h := newTestServer(&mockStorage{})

	t.Run("Valid", func(t *testing.T) {
		w := postJSON(t, h, "/api/validate", apiRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp struct {
			Valid  bool          `json:"valid"`
			Issues []types.Issue `json:"issues"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Valid)
		for _, issue := range resp.Issues {
			assert.Equal(t, types.SeverityWarning, issue.Severity)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		record := apiRecord()
		record["utility"] = ""
		w := postJSON(t, h, "/api/validate", record)
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp struct {
			Valid  bool          `json:"valid"`
			Issues []types.Issue `json:"issues"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Valid)
		assert.NotEmpty(t, resp.Issues)
	})

	t.Run("LocalDialect", func(t *testing.T) {
		w := postJSON(t, h, "/api/validate", localRecord())
		require.Equal(t, http.StatusOK, w.Result().StatusCode)

		var resp struct {
			Valid bool `json:"valid"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Valid)
	})
}
