// Package urdb converts between the two URDB JSON dialects and decodes
// records into the typed tariff model.
//
// The "API" dialect uses lowercase keys and flat rate-tier arrays
// (OpenEI's utility_rates responses). The "Local" dialect uses camelCase
// keys with tier-wrapper objects (MongoDB exports). Real-world data mixes
// the two axes, so key naming and tier nesting are detected and corrected
// independently.
package urdb

// Format identifies the dialect of a raw tariff record.
type Format string

const (
	// FormatAPI is the canonical lowercase dialect with flat tier arrays.
	FormatAPI Format = "api"
	// FormatLocal is the camelCase dialect with nested tier wrappers.
	FormatLocal Format = "local"
	// FormatHybrid has lowercase keys but still nests its rate tiers.
	FormatHybrid Format = "hybrid"
)

// camelMarkers are keys that only appear in the Local dialect.
var camelMarkers = []string{
	"utilityName",
	"rateName",
	"energyRateStrux",
	"demandRateStrux",
	"flatDemandStrux",
	"_id",
}

// tierWrapperKeys maps every spelling of a rate-structure field to the
// wrapper key its nested form uses.
var tierWrapperKeys = map[string]string{
	"energyratestructure": "energyRateTiers",
	"energyRateStrux":     "energyRateTiers",
	"demandratestructure": "demandRateTiers",
	"demandRateStrux":     "demandRateTiers",
	"flatdemandstructure": "flatDemandTiers",
	"flatDemandStrux":     "flatDemandTiers",
}

// looksCamelCase reports whether the record uses Local-dialect key naming.
func looksCamelCase(raw map[string]any) bool {
	for _, marker := range camelMarkers {
		if _, ok := raw[marker]; ok {
			return true
		}
	}
	return false
}

// hasNestedTiers reports whether any rate-structure entry is a wrapper
// object holding its tiers under a known key instead of a flat array.
func hasNestedTiers(raw map[string]any) bool {
	for field, wrapper := range tierWrapperKeys {
		list, ok := raw[field].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		if entry, ok := list[0].(map[string]any); ok {
			if _, ok := entry[wrapper]; ok {
				return true
			}
		}
	}
	return false
}

// DetectFormat inspects key casing and tier nesting independently and
// tags the record's dialect.
func DetectFormat(raw map[string]any) Format {
	if looksCamelCase(raw) {
		return FormatLocal
	}
	if hasNestedTiers(raw) {
		return FormatHybrid
	}
	return FormatAPI
}
