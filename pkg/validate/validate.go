// Package validate checks a tariff for internal consistency. Findings are
// returned as data rather than errors: warnings never block a save and
// whether errors do is the caller's policy.
package validate

import (
	"fmt"

	"github.com/tariffscope/tariffscope/pkg/types"
)

// Validate runs every rule against the tariff and returns all findings.
// Rules do not short-circuit; a tariff with several problems reports them
// all at once.
func Validate(t types.Tariff) []types.Issue {
	var issues []types.Issue
	addError := func(field, msg string) {
		issues = append(issues, types.Issue{Severity: types.SeverityError, Field: field, Message: msg})
	}
	addWarning := func(field, msg string) {
		issues = append(issues, types.Issue{Severity: types.SeverityWarning, Field: field, Message: msg})
	}

	// required basic info
	if t.Utility == "" {
		addError("utility", "utility name is required")
	}
	if t.Name == "" {
		addError("name", "rate name is required")
	}
	if t.Description == "" {
		addError("description", "description is required")
	}

	// energy rates must exist
	if len(t.EnergyRates) == 0 {
		addError("energyratestructure", "energy rate structure cannot be empty")
	}

	// every schedule cell must reference an existing period
	issues = append(issues, checkSchedule("energyweekdayschedule", t.EnergySchedule.Weekday, len(t.EnergyRates))...)
	issues = append(issues, checkSchedule("energyweekendschedule", t.EnergySchedule.Weekend, len(t.EnergyRates))...)
	if t.DemandSchedule != nil && len(t.DemandRates) > 0 {
		issues = append(issues, checkSchedule("demandweekdayschedule", t.DemandSchedule.Weekday, len(t.DemandRates))...)
		issues = append(issues, checkSchedule("demandweekendschedule", t.DemandSchedule.Weekend, len(t.DemandRates))...)
	}

	// demand rates and schedules come as a pair
	if t.DemandSchedule != nil && len(t.DemandRates) == 0 {
		addError("demandratestructure", "demand schedules present without a demand rate structure")
	}
	if t.DemandSchedule == nil && len(t.DemandRates) > 0 {
		addError("demandweekdayschedule", "demand rate structure present without demand schedules")
	}

	// flat demand month assignments must reference existing seasons
	if t.FlatDemand != nil {
		for month, season := range t.FlatDemand.Months {
			if season >= len(t.FlatDemand.Periods) {
				addError("flatdemandmonths", fmt.Sprintf("month %d references season %d but only %d seasons exist", month, season, len(t.FlatDemand.Periods)))
			}
		}
	}

	if len(t.EnergyRates) > 0 && t.EnergyRates.AllZero() {
		addWarning("energyratestructure", "all energy rates are zero")
	}
	if !t.HasFixedCharge() {
		addWarning("fixedchargefirstmeter", "fixed charge is zero or absent")
	}

	return issues
}

// HasErrors reports whether any issue is of ERROR severity.
func HasErrors(issues []types.Issue) bool {
	for _, issue := range issues {
		if issue.Severity == types.SeverityError {
			return true
		}
	}
	return false
}

// checkSchedule reports the first out-of-range cell per schedule; one
// finding per schedule keeps a completely broken matrix from flooding the
// issue list with hundreds of duplicates.
func checkSchedule(field string, ds types.DaySchedule, periods int) []types.Issue {
	for m := range ds {
		for h, period := range ds[m] {
			if period >= periods {
				return []types.Issue{{
					Severity: types.SeverityError,
					Field:    field,
					Message:  fmt.Sprintf("month %d hour %d references period %d but only %d periods exist", m, h, period, periods),
				}}
			}
		}
	}
	return nil
}
