package urdb

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FormatError reports a record that cannot be normalized, naming the
// offending field.
type FormatError struct {
	Field   string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot normalize %s: %s", e.Field, e.Message)
}

// fieldMap translates Local-dialect keys to their API-dialect names.
// Keys not listed here pass through (lowercased when they start with an
// uppercase letter) so unknown fields survive conversion.
var fieldMap = map[string]string{
	"utilityName":               "utility",
	"rateName":                  "name",
	"eiaId":                     "eiaid",
	"serviceType":               "servicetype",
	"effectiveDate":             "startdate",
	"endDate":                   "enddate",
	"demandMin":                 "mindemand",
	"demandMax":                 "maxdemand",
	"energyMin":                 "minenergy",
	"energyMax":                 "maxenergy",
	"voltageCategory":           "voltagecategory",
	"phaseWiring":               "phasewiring",
	"energyRateStrux":           "energyratestructure",
	"energyWeekdaySched":        "energyweekdayschedule",
	"energyWeekendSched":        "energyweekendschedule",
	"energyTOULabels":           "energytoulabels",
	"energyComments":            "energycomments",
	"demandRateStrux":           "demandratestructure",
	"demandWeekdaySched":        "demandweekdayschedule",
	"demandWeekendSched":        "demandweekendschedule",
	"demandLabels":              "demandtoulabels",
	"demandUnits":               "demandunits",
	"demandRateUnit":            "demandrateunit",
	"demandReactivePowerCharge": "demandreactivepowercharge",
	"flatDemandStrux":           "flatdemandstructure",
	"flatDemandMonths":          "flatdemandmonths",
	"flatDemandUnit":            "flatdemandunit",
	"fixedChargeFirstMeter":     "fixedchargefirstmeter",
	"fixedChargeUnits":          "fixedchargeunits",
	"minMonthlyCharge":          "minmonthlycharge",
	"sourceParent":              "sourceparent",
	"peakKWCapacityMin":         "peakkwcapacitymin",
	"peakKWCapacityMax":         "peakkwcapacitymax",
	"peakKWhUsageMin":           "peakkwhusagemin",
	"peakKWhUsageMax":           "peakkwhusagemax",
}

// dateFields are Local-dialect keys whose values arrive as a
// {"$date": ISO8601} wrapper and convert to integer Unix seconds.
var dateFields = map[string]bool{
	"effectiveDate": true,
	"endDate":       true,
}

// ToAPIFormat converts a single tariff record from either dialect into
// canonical API-format field names and flat rate-tier arrays. Applying it
// to an already-API-format record returns an equivalent record, so it is
// safe to call unconditionally.
func ToAPIFormat(raw map[string]any) (map[string]any, error) {
	var converted map[string]any
	if looksCamelCase(raw) {
		var err error
		converted, err = mapLocalKeys(raw)
		if err != nil {
			return nil, err
		}
	} else {
		converted = make(map[string]any, len(raw))
		for k, v := range raw {
			converted[k] = v
		}
	}
	// naming and nesting are independent axes: a record with lowercase
	// keys can still nest its tiers
	normalizeRateStructures(converted)
	return converted, nil
}

// ConvertToItems normalizes a record (or an already-wrapped document) and
// wraps it in the single-element items envelope consumers expect.
func ConvertToItems(raw map[string]any) (map[string]any, error) {
	record := raw
	if items, ok := raw["items"].([]any); ok {
		if len(items) == 0 {
			return nil, &FormatError{Field: "items", Message: "empty items array"}
		}
		first, ok := items[0].(map[string]any)
		if !ok {
			return nil, &FormatError{Field: "items", Message: "first item is not an object"}
		}
		record = first
	}
	converted, err := ToAPIFormat(record)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": []any{converted}}, nil
}

func mapLocalKeys(raw map[string]any) (map[string]any, error) {
	converted := make(map[string]any, len(raw))
	for key, value := range raw {
		switch {
		case key == "_id":
			// MongoDB identifier becomes the URDB label
			if oid, ok := value.(map[string]any); ok {
				converted["label"] = fmt.Sprint(oid["$oid"])
			} else if value != nil {
				converted["label"] = fmt.Sprint(value)
			} else {
				converted["label"] = ""
			}
		case dateFields[key]:
			ts, err := convertDate(key, value)
			if err != nil {
				return nil, err
			}
			converted[fieldMap[key]] = ts
		default:
			newKey, ok := fieldMap[key]
			if !ok {
				newKey = key
				if r := []rune(key); len(r) > 0 && unicode.IsUpper(r[0]) {
					newKey = strings.ToLower(key)
				}
			}
			converted[newKey] = value
		}
	}
	return converted, nil
}

// convertDate turns a {"$date": ...} wrapper into integer Unix seconds
// (UTC). Null and absent dates stay null.
func convertDate(field string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	wrapper, ok := value.(map[string]any)
	if !ok {
		// already a plain timestamp or ISO string
		if s, ok := value.(string); ok {
			return parseISODate(field, s)
		}
		return value, nil
	}
	inner, ok := wrapper["$date"]
	if !ok || inner == nil {
		return nil, nil
	}
	switch v := inner.(type) {
	case string:
		return parseISODate(field, v)
	case float64:
		// Mongo's canonical extended JSON uses epoch milliseconds
		return int64(v) / 1000, nil
	default:
		return nil, &FormatError{Field: field, Message: fmt.Sprintf("unsupported $date value %T", inner)}
	}
}

func parseISODate(field, s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, &FormatError{Field: field, Message: fmt.Sprintf("malformed date %q", s)}
	}
	return t.UTC().Unix(), nil
}

// normalizeRateStructures rewrites nested tier-wrapper objects into flat
// tier arrays, in place. Entries that are already arrays pass through
// unchanged, which makes the rewrite idempotent.
func normalizeRateStructures(record map[string]any) {
	for field, wrapper := range tierWrapperKeys {
		list, ok := record[field].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := first[wrapper]; !ok {
			continue
		}
		flat := make([]any, len(list))
		for i, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				if tiers, ok := m[wrapper]; ok {
					flat[i] = tiers
					continue
				}
				// a bare tier object without the wrapper key still counts
				// as a single-tier period
				flat[i] = []any{m}
				continue
			}
			flat[i] = entry
		}
		record[field] = flat
	}
}
