// Package billing applies a tariff's rate and schedule structure to a
// load profile and produces a cost breakdown.
package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/tariffscope/tariffscope/pkg/types"
)

// CalculationError reports a tariff inconsistency discovered while
// calculating, meaning validation was skipped or bypassed. The
// calculation aborts instead of silently billing at a zero rate.
type CalculationError struct {
	Field   string
	Message string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation aborted (%s): %s", e.Field, e.Message)
}

type monthKey struct {
	year  int
	month time.Month
}

type demandKey struct {
	monthKey
	period int
}

type monthAgg struct {
	kwh        float64
	hours      float64
	peakKW     float64
	energyCost float64
}

// Calculate computes energy, TOU demand, flat demand and fixed charges
// for the profile under the tariff. An empty profile yields a zero
// breakdown. Samples outside the tariff's declared date range are not
// excluded; filtering is the caller's responsibility.
func Calculate(t types.Tariff, lp types.LoadProfile) (types.BillBreakdown, error) {
	var bill types.BillBreakdown
	if lp.Len() == 0 {
		return bill, nil
	}

	energyByPeriod := map[int]*types.PeriodEnergy{}
	demandPeaks := map[demandKey]float64{}
	monthPeaks := map[monthKey]float64{}
	months := map[monthKey]*monthAgg{}
	days := map[time.Time]bool{}

	for i, s := range lp.Samples {
		ts := s.Timestamp
		key := monthKey{ts.Year(), ts.Month()}
		agg := months[key]
		if agg == nil {
			agg = &monthAgg{}
			months[key] = agg
		}

		period := t.EnergySchedule.PeriodFor(ts)
		if period >= len(t.EnergyRates) {
			return types.BillBreakdown{}, &CalculationError{
				Field:   "energyratestructure",
				Message: fmt.Sprintf("schedule references period %d but only %d periods exist", period, len(t.EnergyRates)),
			}
		}
		kwh := lp.EnergyAt(i)
		cost := kwh * t.EnergyRates[period].EffectiveRate()

		pe := energyByPeriod[period]
		if pe == nil {
			pe = &types.PeriodEnergy{Period: period}
			if period < len(t.EnergyTOULabels) {
				pe.Label = t.EnergyTOULabels[period]
			}
			energyByPeriod[period] = pe
		}
		pe.KWH += kwh
		pe.Cost += cost
		bill.EnergyCost += cost

		agg.kwh += kwh
		agg.hours += lp.DurationAt(i).Hours()
		agg.energyCost += cost
		if s.DemandKW > agg.peakKW {
			agg.peakKW = s.DemandKW
		}
		if s.DemandKW > monthPeaks[key] {
			monthPeaks[key] = s.DemandKW
		}
		days[time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)] = true

		if t.HasDemand() {
			dPeriod := t.DemandSchedule.PeriodFor(ts)
			if dPeriod >= len(t.DemandRates) {
				return types.BillBreakdown{}, &CalculationError{
					Field:   "demandratestructure",
					Message: fmt.Sprintf("schedule references period %d but only %d periods exist", dPeriod, len(t.DemandRates)),
				}
			}
			dKey := demandKey{key, dPeriod}
			if s.DemandKW > demandPeaks[dKey] {
				demandPeaks[dKey] = s.DemandKW
			}
		}
	}

	monthKeys := sortedMonthKeys(months)

	// TOU demand: peak within each (month, period), not a sum
	touByMonth := map[monthKey]float64{}
	if t.HasDemand() {
		keys := make([]demandKey, 0, len(demandPeaks))
		for k := range demandPeaks {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].monthKey != keys[j].monthKey {
				return lessMonth(keys[i].monthKey, keys[j].monthKey)
			}
			return keys[i].period < keys[j].period
		})
		for _, k := range keys {
			peak := demandPeaks[k]
			cost := peak * t.DemandRates[k.period].EffectiveRate()
			bill.DemandPeaks = append(bill.DemandPeaks, types.DemandPeak{
				Year:   k.year,
				Month:  k.month,
				Period: k.period,
				PeakKW: peak,
				Cost:   cost,
			})
			bill.TOUDemandCost += cost
			touByMonth[k.monthKey] += cost
		}
	}

	// flat demand: whole-month peak at the month's seasonal rate
	flatByMonth := map[monthKey]float64{}
	if t.HasFlatDemand() {
		for _, k := range monthKeys {
			season := t.FlatDemand.SeasonFor(k.month)
			if season >= len(t.FlatDemand.Periods) {
				return types.BillBreakdown{}, &CalculationError{
					Field:   "flatdemandmonths",
					Message: fmt.Sprintf("month %d references season %d but only %d seasons exist", int(k.month)-1, season, len(t.FlatDemand.Periods)),
				}
			}
			peak := monthPeaks[k]
			cost := peak * t.FlatDemand.Periods[season].EffectiveRate()
			bill.FlatDemandPeaks = append(bill.FlatDemandPeaks, types.FlatDemandPeak{
				Year:   k.year,
				Month:  k.month,
				Season: season,
				PeakKW: peak,
				Cost:   cost,
			})
			bill.FlatDemandCost += cost
			flatByMonth[k] = cost
		}
	}

	fixedByMonth := fixedCharges(t, lp, monthKeys, days, months)
	for _, k := range monthKeys {
		bill.FixedCost += fixedByMonth[k]
	}

	for _, k := range monthKeys {
		agg := months[k]
		mb := types.MonthlyBill{
			Year:           k.year,
			Month:          k.month,
			TotalKWH:       agg.kwh,
			PeakKW:         agg.peakKW,
			EnergyCost:     agg.energyCost,
			TOUDemandCost:  touByMonth[k],
			FlatDemandCost: flatByMonth[k],
			FixedCost:      fixedByMonth[k],
		}
		if agg.hours > 0 {
			mb.AverageKW = agg.kwh / agg.hours
		}
		if agg.peakKW > 0 {
			mb.LoadFactor = mb.AverageKW / agg.peakKW
		}
		mb.TotalCost = mb.EnergyCost + mb.TOUDemandCost + mb.FlatDemandCost + mb.FixedCost
		bill.Months = append(bill.Months, mb)
	}

	periods := make([]int, 0, len(energyByPeriod))
	for p := range energyByPeriod {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		bill.EnergyByPeriod = append(bill.EnergyByPeriod, *energyByPeriod[p])
	}

	bill.TotalKWH = lp.TotalKWH()
	bill.PeakKW = lp.PeakKW()
	bill.AverageKW = lp.AverageKW()
	bill.LoadFactor = lp.LoadFactor()
	bill.TotalCost = bill.EnergyCost + bill.TOUDemandCost + bill.FlatDemandCost + bill.FixedCost

	return bill, nil
}

// fixedCharges prorates the fixed charge by its unit: per distinct
// calendar month, per distinct calendar day, or per fraction of a year
// spanned.
func fixedCharges(t types.Tariff, lp types.LoadProfile, monthKeys []monthKey, days map[time.Time]bool, months map[monthKey]*monthAgg) map[monthKey]float64 {
	out := map[monthKey]float64{}
	if !t.HasFixedCharge() {
		return out
	}

	switch t.FixedCharge.Units {
	case types.FixedChargePerDay:
		for day := range days {
			k := monthKey{day.Year(), day.Month()}
			out[k] += t.FixedCharge.Amount
		}
	case types.FixedChargePerYear:
		start, end := lp.Span()
		spanDays := end.Sub(start).Hours() / 24
		total := t.FixedCharge.Amount * spanDays / 365
		// attribute to months by observed hours
		var totalHours float64
		for _, agg := range months {
			totalHours += agg.hours
		}
		for _, k := range monthKeys {
			if totalHours > 0 {
				out[k] = total * months[k].hours / totalHours
			}
		}
	default:
		// $/month and any unrecognized unit label
		for _, k := range monthKeys {
			out[k] = t.FixedCharge.Amount
		}
	}
	return out
}

func sortedMonthKeys(months map[monthKey]*monthAgg) []monthKey {
	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessMonth(keys[i], keys[j]) })
	return keys
}

func lessMonth(a, b monthKey) bool {
	if a.year != b.year {
		return a.year < b.year
	}
	return a.month < b.month
}
