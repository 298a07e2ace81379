package server

import (
	"github.com/stretchr/testify/mock"
	"github.com/tariffscope/tariffscope/pkg/storage/storagemock"
)

// anyCtx matches the request context in expectations.
var anyCtx = mock.Anything

type mockStorage = storagemock.MockDatabase

func flatScheduleRows() []any {
	var rows []any
	for m := 0; m < 12; m++ {
		row := make([]any, 24)
		for h := range row {
			row[h] = float64(0)
		}
		rows = append(rows, row)
	}
	return rows
}

// apiRecord is a minimal valid tariff record in API format.
func apiRecord() map[string]any {
	return map[string]any{
		"label":                 "5d1a9a935457a3ae0d6ed1b4",
		"utility":               "Pacific Gas & Electric Co",
		"name":                  "E-19 Medium General Service",
		"description":           "medium general demand-metered service",
		"sector":                "Commercial",
		"energyratestructure":   []any{[]any{map[string]any{"rate": 0.1, "unit": "kWh"}}},
		"energyweekdayschedule": flatScheduleRows(),
		"energyweekendschedule": flatScheduleRows(),
	}
}
