package urdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tariffscope/tariffscope/pkg/types"
)

// ParseTariff decodes an API-format record into the typed tariff model,
// rejecting malformed shapes at the boundary. Missing optional fields
// degrade to zero values; shape problems surface as *types.ShapeError.
func ParseTariff(raw map[string]any) (types.Tariff, error) {
	var t types.Tariff

	t.Utility = asString(raw["utility"])
	t.Name = asString(raw["name"])
	t.Description = asString(raw["description"])
	t.Sector = asString(raw["sector"])
	t.ServiceType = asString(raw["servicetype"])
	t.VoltageCategory = asString(raw["voltagecategory"])
	t.PhaseWiring = asString(raw["phasewiring"])
	t.Country = asString(raw["country"])
	if t.Country == "" {
		t.Country = "USA"
	}
	t.Label = asString(raw["label"])
	t.EIAID = int64(asFloat(raw["eiaid"]))
	if src := asString(raw["source"]); src != "" {
		t.SourceURLs = append(t.SourceURLs, src)
	}
	if src := asString(raw["sourceparent"]); src != "" {
		t.SourceURLs = append(t.SourceURLs, src)
	}

	if ts := asFloat(raw["startdate"]); ts != 0 {
		t.StartDate = time.Unix(int64(ts), 0).UTC()
	}
	if ts := asFloat(raw["enddate"]); ts != 0 {
		t.EndDate = time.Unix(int64(ts), 0).UTC()
	}

	t.MinDemandKW = asFloat(raw["mindemand"])
	t.MaxDemandKW = asFloat(raw["maxdemand"])
	t.MinEnergyKWH = asFloat(raw["minenergy"])
	t.MaxEnergyKWH = asFloat(raw["maxenergy"])

	t.EnergyRates = parseRateStructure(raw["energyratestructure"])
	t.EnergyTOULabels = asStrings(raw["energytoulabels"])
	t.EnergyComments = asString(raw["energycomments"])

	weekday, err := parseSchedule("energyweekdayschedule", raw["energyweekdayschedule"])
	if err != nil {
		return t, err
	}
	weekend, err := parseSchedule("energyweekendschedule", raw["energyweekendschedule"])
	if err != nil {
		return t, err
	}
	t.EnergySchedule = types.ScheduleMatrix{Weekday: weekday, Weekend: weekend}

	t.DemandRates = parseRateStructure(raw["demandratestructure"])
	t.DemandTOULabels = asStrings(raw["demandtoulabels"])
	t.DemandUnits = asString(raw["demandunits"])
	t.DemandRateUnit = asString(raw["demandrateunit"])
	if raw["demandweekdayschedule"] != nil || raw["demandweekendschedule"] != nil {
		dWeekday, err := parseSchedule("demandweekdayschedule", raw["demandweekdayschedule"])
		if err != nil {
			return t, err
		}
		dWeekend, err := parseSchedule("demandweekendschedule", raw["demandweekendschedule"])
		if err != nil {
			return t, err
		}
		t.DemandSchedule = &types.ScheduleMatrix{Weekday: dWeekday, Weekend: dWeekend}
	}

	if raw["flatdemandstructure"] != nil {
		periods := parseRateStructure(raw["flatdemandstructure"])
		months, err := types.NewFlatDemandMonths(asInts(raw["flatdemandmonths"]))
		if err != nil {
			return t, err
		}
		t.FlatDemand = &types.FlatDemandStructure{Periods: periods, Months: months}
		t.FlatDemandUnit = asString(raw["flatdemandunit"])
	}

	if amount := asFloat(raw["fixedchargefirstmeter"]); amount != 0 {
		units := types.FixedChargeUnits(asString(raw["fixedchargeunits"]))
		if units == "" {
			units = types.FixedChargePerMonth
		}
		t.FixedCharge = types.FixedCharge{Amount: amount, Units: units}
	}
	t.MinMonthlyCharge = asFloat(raw["minmonthlycharge"])

	return t, nil
}

// ParseItems decodes an items-envelope JSON document into a tariff,
// normalizing the dialect first.
func ParseItems(data []byte) (types.Tariff, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return types.Tariff{}, fmt.Errorf("failed to decode tariff document: %w", err)
	}
	wrapped, err := ConvertToItems(doc)
	if err != nil {
		return types.Tariff{}, err
	}
	record := wrapped["items"].([]any)[0].(map[string]any)
	return ParseTariff(record)
}

// TariffToAPI serializes a tariff back to a canonical API-format record.
func TariffToAPI(t types.Tariff) map[string]any {
	record := map[string]any{
		"utility":     t.Utility,
		"name":        t.Name,
		"description": t.Description,
	}
	putString(record, "sector", t.Sector)
	putString(record, "servicetype", t.ServiceType)
	putString(record, "voltagecategory", t.VoltageCategory)
	putString(record, "phasewiring", t.PhaseWiring)
	putString(record, "country", t.Country)
	putString(record, "label", t.Label)
	if t.EIAID != 0 {
		record["eiaid"] = t.EIAID
	}
	if len(t.SourceURLs) > 0 {
		record["source"] = t.SourceURLs[0]
	}
	if !t.StartDate.IsZero() {
		record["startdate"] = t.StartDate.Unix()
	}
	if !t.EndDate.IsZero() {
		record["enddate"] = t.EndDate.Unix()
	}
	putFloat(record, "mindemand", t.MinDemandKW)
	putFloat(record, "maxdemand", t.MaxDemandKW)
	putFloat(record, "minenergy", t.MinEnergyKWH)
	putFloat(record, "maxenergy", t.MaxEnergyKWH)

	record["energyratestructure"] = rateStructureToAPI(t.EnergyRates)
	record["energyweekdayschedule"] = t.EnergySchedule.Weekday.Rows()
	record["energyweekendschedule"] = t.EnergySchedule.Weekend.Rows()
	if len(t.EnergyTOULabels) > 0 {
		record["energytoulabels"] = t.EnergyTOULabels
	}
	putString(record, "energycomments", t.EnergyComments)

	if len(t.DemandRates) > 0 {
		record["demandratestructure"] = rateStructureToAPI(t.DemandRates)
	}
	if t.DemandSchedule != nil {
		record["demandweekdayschedule"] = t.DemandSchedule.Weekday.Rows()
		record["demandweekendschedule"] = t.DemandSchedule.Weekend.Rows()
	}
	if len(t.DemandTOULabels) > 0 {
		record["demandtoulabels"] = t.DemandTOULabels
	}
	putString(record, "demandunits", t.DemandUnits)
	putString(record, "demandrateunit", t.DemandRateUnit)

	if t.FlatDemand != nil {
		record["flatdemandstructure"] = rateStructureToAPI(t.FlatDemand.Periods)
		months := make([]int, 12)
		copy(months, t.FlatDemand.Months[:])
		record["flatdemandmonths"] = months
		putString(record, "flatdemandunit", t.FlatDemandUnit)
	}

	if t.HasFixedCharge() {
		record["fixedchargefirstmeter"] = t.FixedCharge.Amount
		record["fixedchargeunits"] = string(t.FixedCharge.Units)
	}
	putFloat(record, "minmonthlycharge", t.MinMonthlyCharge)

	return record
}

// MarshalItems serializes a tariff as the single-item items envelope, the
// builder's output format.
func MarshalItems(t types.Tariff) ([]byte, error) {
	doc := map[string]any{"items": []any{TariffToAPI(t)}}
	return json.MarshalIndent(doc, "", "  ")
}

func rateStructureToAPI(rs types.RateStructure) [][]map[string]any {
	out := make([][]map[string]any, len(rs))
	for i, p := range rs {
		tier := map[string]any{"rate": p.Rate, "adj": p.Adjustment}
		if p.Unit != "" {
			tier["unit"] = p.Unit
		}
		out[i] = []map[string]any{tier}
	}
	return out
}

// parseRateStructure reads a flat [[{rate, adj}]] structure. Only the
// first tier of each period is used; multi-tier block rates are out of
// scope for the calculation model.
func parseRateStructure(v any) types.RateStructure {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	rs := make(types.RateStructure, 0, len(list))
	for _, periodRaw := range list {
		var tier map[string]any
		switch p := periodRaw.(type) {
		case []any:
			if len(p) > 0 {
				tier, _ = p[0].(map[string]any)
			}
		case map[string]any:
			tier = p
		}
		period := types.RatePeriod{}
		if tier != nil {
			period.Rate = asFloat(tier["rate"])
			period.Adjustment = asFloat(tier["adj"])
			period.Unit = asString(tier["unit"])
		}
		rs = append(rs, period)
	}
	return rs
}

func parseSchedule(field string, v any) (types.DaySchedule, error) {
	rows, ok := v.([]any)
	if !ok {
		return types.DaySchedule{}, &types.ShapeError{Field: field, Message: "missing or not an array"}
	}
	nested := make([][]int, len(rows))
	for m, rowRaw := range rows {
		row, ok := rowRaw.([]any)
		if !ok {
			return types.DaySchedule{}, &types.ShapeError{Field: field, Message: fmt.Sprintf("month %d is not an array", m)}
		}
		nested[m] = make([]int, len(row))
		for h, cell := range row {
			nested[m][h] = int(asFloat(cell))
		}
	}
	return types.NewDaySchedule(field, nested)
}

func putString(record map[string]any, key, value string) {
	if value != "" {
		record[key] = value
	}
}

func putFloat(record map[string]any, key string, value float64) {
	if value != 0 {
		record[key] = value
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, asString(item))
	}
	return out
}

func asInts(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		out = append(out, int(asFloat(item)))
	}
	return out
}
