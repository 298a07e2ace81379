package urdb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

const localRecord = `{
	"_id": {"$oid": "539f6a23ec4f024411ec7d7c"},
	"utilityName": "Pacific Gas & Electric Co",
	"rateName": "E-19 Medium General Service",
	"eiaId": 14328,
	"serviceType": "Bundled",
	"effectiveDate": {"$date": "2014-05-01T00:00:00.000Z"},
	"energyRateStrux": [
		{"energyRateTiers": [{"rate": 0.1, "adj": 0.01}]},
		{"energyRateTiers": [{"rate": 0.2, "adj": 0.02}]}
	],
	"energyWeekdaySched": null,
	"flatDemandStrux": [
		{"flatDemandTiers": [{"rate": 5.0}]}
	],
	"customVendorField": "kept"
}`

func TestDetectFormat(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		assert.Equal(t, FormatLocal, DetectFormat(decode(t, localRecord)))
	})

	t.Run("api", func(t *testing.T) {
		raw := decode(t, `{"utility": "PG&E", "name": "E-19", "energyratestructure": [[{"rate": 0.1}]]}`)
		assert.Equal(t, FormatAPI, DetectFormat(raw))
	})

	t.Run("hybrid keeps lowercase keys with nested tiers", func(t *testing.T) {
		raw := decode(t, `{
			"utility": "PG&E",
			"name": "E-19",
			"energyratestructure": [{"energyRateTiers": [{"rate": 0.1}]}]
		}`)
		assert.Equal(t, FormatHybrid, DetectFormat(raw))
	})
}

func TestToAPIFormat(t *testing.T) {
	t.Run("local record", func(t *testing.T) {
		converted, err := ToAPIFormat(decode(t, localRecord))
		require.NoError(t, err)

		assert.Equal(t, "539f6a23ec4f024411ec7d7c", converted["label"])
		assert.Equal(t, "Pacific Gas & Electric Co", converted["utility"])
		assert.Equal(t, "E-19 Medium General Service", converted["name"])
		assert.Equal(t, float64(14328), converted["eiaid"].(float64))
		assert.Equal(t, "Bundled", converted["servicetype"])
		// 2014-05-01T00:00:00Z
		assert.Equal(t, int64(1398902400), converted["startdate"])
		// unknown keys pass through unchanged
		assert.Equal(t, "kept", converted["customVendorField"])

		ers, ok := converted["energyratestructure"].([]any)
		require.True(t, ok)
		require.Len(t, ers, 2)
		tier := ers[0].([]any)[0].(map[string]any)
		assert.Equal(t, 0.1, tier["rate"])
		assert.Equal(t, 0.01, tier["adj"])

		fds := converted["flatdemandstructure"].([]any)
		require.Len(t, fds, 1)
		assert.Equal(t, 5.0, fds[0].([]any)[0].(map[string]any)["rate"])
	})

	t.Run("hybrid record", func(t *testing.T) {
		raw := decode(t, `{
			"utility": "PG&E",
			"name": "E-19",
			"energyratestructure": [{"energyRateTiers": [{"rate": 0.1}]}, [{"rate": 0.2}]]
		}`)
		converted, err := ToAPIFormat(raw)
		require.NoError(t, err)
		ers := converted["energyratestructure"].([]any)
		require.Len(t, ers, 2)
		assert.Equal(t, 0.1, ers[0].([]any)[0].(map[string]any)["rate"])
		assert.Equal(t, 0.2, ers[1].([]any)[0].(map[string]any)["rate"])
	})

	t.Run("idempotent", func(t *testing.T) {
		once, err := ToAPIFormat(decode(t, localRecord))
		require.NoError(t, err)
		twice, err := ToAPIFormat(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("api record unchanged", func(t *testing.T) {
		raw := decode(t, `{"utility": "PG&E", "startdate": 1398902400, "energyratestructure": [[{"rate": 0.1}]]}`)
		converted, err := ToAPIFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, converted)
	})

	t.Run("malformed date is a FormatError", func(t *testing.T) {
		raw := decode(t, `{"utilityName": "X", "effectiveDate": {"$date": "not-a-date"}}`)
		_, err := ToAPIFormat(raw)
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, "effectiveDate", formatErr.Field)
	})

	t.Run("null date stays null", func(t *testing.T) {
		raw := decode(t, `{"utilityName": "X", "effectiveDate": null, "endDate": {"$date": null}}`)
		converted, err := ToAPIFormat(raw)
		require.NoError(t, err)
		assert.Nil(t, converted["startdate"])
		assert.Nil(t, converted["enddate"])
	})

	t.Run("epoch millisecond date", func(t *testing.T) {
		raw := decode(t, `{"utilityName": "X", "effectiveDate": {"$date": 1398902400000}}`)
		converted, err := ToAPIFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(1398902400), converted["startdate"])
	})
}

func TestConvertToItems(t *testing.T) {
	t.Run("wraps a bare record", func(t *testing.T) {
		doc, err := ConvertToItems(decode(t, localRecord))
		require.NoError(t, err)
		items, ok := doc["items"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
		assert.Equal(t, "Pacific Gas & Electric Co", items[0].(map[string]any)["utility"])
	})

	t.Run("no-op wrap for api format", func(t *testing.T) {
		doc, err := ConvertToItems(decode(t, `{"items": [{"utility": "PG&E", "energyratestructure": [[{"rate": 0.1}]]}]}`))
		require.NoError(t, err)
		items := doc["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "PG&E", items[0].(map[string]any)["utility"])
	})

	t.Run("empty items", func(t *testing.T) {
		_, err := ConvertToItems(decode(t, `{"items": []}`))
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
	})
}
