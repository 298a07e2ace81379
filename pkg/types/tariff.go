package types

import (
	"fmt"
	"time"
)

// ShapeError reports a structure whose dimensions do not match the URDB
// schema. An object with a bad shape cannot be constructed.
type ShapeError struct {
	Field   string
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid shape for %s: %s", e.Field, e.Message)
}

// RatePeriod is the pricing for a single TOU period. Multi-tier rates
// are intentionally unsupported: each period carries exactly one tier.
type RatePeriod struct {
	Rate       float64 `json:"rate"`
	Adjustment float64 `json:"adj"`
	Unit       string  `json:"unit,omitempty"`
}

// EffectiveRate returns the amount actually billed per unit.
func (p RatePeriod) EffectiveRate() float64 {
	return p.Rate + p.Adjustment
}

// RateStructure is an ordered list of TOU periods. The slice index is the
// period ID referenced by schedule matrices.
type RateStructure []RatePeriod

// AllZero reports whether every period's effective rate is exactly zero.
// An empty structure is considered all-zero.
func (rs RateStructure) AllZero() bool {
	for _, p := range rs {
		if p.EffectiveRate() != 0 {
			return false
		}
	}
	return true
}

// DaySchedule maps (month, hour) to a TOU period index for one day type.
// Months are 0-based (Jan=0), hours 0-23.
type DaySchedule [12][24]int

// NewDaySchedule builds a DaySchedule from nested slices, rejecting
// anything that is not exactly 12 months of 24 hours.
func NewDaySchedule(field string, rows [][]int) (DaySchedule, error) {
	var ds DaySchedule
	if len(rows) != 12 {
		return ds, &ShapeError{Field: field, Message: fmt.Sprintf("expected 12 months, got %d", len(rows))}
	}
	for m, hours := range rows {
		if len(hours) != 24 {
			return ds, &ShapeError{Field: field, Message: fmt.Sprintf("month %d: expected 24 hours, got %d", m, len(hours))}
		}
		for h, period := range hours {
			if period < 0 {
				return ds, &ShapeError{Field: field, Message: fmt.Sprintf("month %d hour %d: negative period index %d", m, h, period)}
			}
			ds[m][h] = period
		}
	}
	return ds, nil
}

// Rows returns the schedule as nested slices, the shape used by the URDB
// JSON schema.
func (ds DaySchedule) Rows() [][]int {
	rows := make([][]int, 12)
	for m := range ds {
		rows[m] = make([]int, 24)
		copy(rows[m], ds[m][:])
	}
	return rows
}

// Max returns the highest period index anywhere in the schedule.
func (ds DaySchedule) Max() int {
	var max int
	for m := range ds {
		for _, p := range ds[m] {
			if p > max {
				max = p
			}
		}
	}
	return max
}

// ScheduleMatrix pairs the weekday and weekend schedules for one charge
// type (energy or demand).
type ScheduleMatrix struct {
	Weekday DaySchedule `json:"weekday"`
	Weekend DaySchedule `json:"weekend"`
}

// IsWeekend reports whether t falls on a Saturday or Sunday. The sample's
// own calendar weekday decides which schedule applies, there is no
// separate "weekend mode" flag.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// PeriodAt returns the TOU period index for a month, hour and day type.
func (m *ScheduleMatrix) PeriodAt(month time.Month, hour int, weekend bool) int {
	if weekend {
		return m.Weekend[int(month)-1][hour]
	}
	return m.Weekday[int(month)-1][hour]
}

// PeriodFor returns the TOU period index for a timestamp.
func (m *ScheduleMatrix) PeriodFor(t time.Time) int {
	return m.PeriodAt(t.Month(), t.Hour(), IsWeekend(t))
}

// MaxPeriod returns the highest period index referenced by either schedule.
func (m *ScheduleMatrix) MaxPeriod() int {
	wd := m.Weekday.Max()
	if we := m.Weekend.Max(); we > wd {
		return we
	}
	return wd
}

// FlatDemandStructure holds seasonal flat-demand pricing: an ordered list
// of seasons plus the month to season assignment.
type FlatDemandStructure struct {
	Periods RateStructure `json:"periods"`
	// Months assigns each calendar month (Jan=0) to an index in Periods.
	Months [12]int `json:"months"`
}

// NewFlatDemandMonths validates the month to season vector.
func NewFlatDemandMonths(vec []int) ([12]int, error) {
	var months [12]int
	if len(vec) != 12 {
		return months, &ShapeError{Field: "flatdemandmonths", Message: fmt.Sprintf("expected 12 entries, got %d", len(vec))}
	}
	for i, p := range vec {
		if p < 0 {
			return months, &ShapeError{Field: "flatdemandmonths", Message: fmt.Sprintf("month %d: negative season index %d", i, p)}
		}
		months[i] = p
	}
	return months, nil
}

// SeasonFor returns the season index assigned to a calendar month.
func (f *FlatDemandStructure) SeasonFor(month time.Month) int {
	return f.Months[int(month)-1]
}

// FixedChargeUnits is the proration unit for a fixed charge.
type FixedChargeUnits string

const (
	FixedChargePerMonth FixedChargeUnits = "$/month"
	FixedChargePerDay   FixedChargeUnits = "$/day"
	FixedChargePerYear  FixedChargeUnits = "$/year"
)

// FixedCharge is a recurring charge independent of consumption.
type FixedCharge struct {
	Amount float64          `json:"amount"`
	Units  FixedChargeUnits `json:"units"`
}

// BasicInfo is the descriptive metadata of a tariff.
type BasicInfo struct {
	Utility         string   `json:"utility"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Sector          string   `json:"sector,omitempty"`
	ServiceType     string   `json:"serviceType,omitempty"`
	VoltageCategory string   `json:"voltageCategory,omitempty"`
	PhaseWiring     string   `json:"phaseWiring,omitempty"`
	Country         string   `json:"country,omitempty"`
	Label           string   `json:"label,omitempty"`
	EIAID           int64    `json:"eiaid,omitempty"`
	SourceURLs      []string `json:"sourceURLs,omitempty"`
}

// TariffSummary is the listing view of a stored tariff.
type TariffSummary struct {
	Label   string `json:"label"`
	Utility string `json:"utility"`
	Name    string `json:"name"`
	Sector  string `json:"sector,omitempty"`
}

// Summary returns the listing view of the tariff.
func (t *Tariff) Summary() TariffSummary {
	return TariffSummary{
		Label:   t.Label,
		Utility: t.Utility,
		Name:    t.Name,
		Sector:  t.Sector,
	}
}

// Tariff is the canonical in-memory representation of a URDB tariff. It
// owns all of its substructures; nothing is shared between tariffs.
type Tariff struct {
	BasicInfo

	// StartDate/EndDate are zero when the tariff has no declared range.
	StartDate time.Time `json:"startDate,omitzero"`
	EndDate   time.Time `json:"endDate,omitzero"`

	MinDemandKW  float64 `json:"minDemandKW,omitempty"`
	MaxDemandKW  float64 `json:"maxDemandKW,omitempty"`
	MinEnergyKWH float64 `json:"minEnergyKWH,omitempty"`
	MaxEnergyKWH float64 `json:"maxEnergyKWH,omitempty"`

	EnergyRates     RateStructure  `json:"energyRates"`
	EnergySchedule  ScheduleMatrix `json:"energySchedule"`
	EnergyTOULabels []string       `json:"energyTOULabels,omitempty"`
	EnergyComments  string         `json:"energyComments,omitempty"`

	DemandRates     RateStructure   `json:"demandRates,omitempty"`
	DemandSchedule  *ScheduleMatrix `json:"demandSchedule,omitempty"`
	DemandTOULabels []string        `json:"demandTOULabels,omitempty"`
	DemandUnits     string          `json:"demandUnits,omitempty"`
	DemandRateUnit  string          `json:"demandRateUnit,omitempty"`

	FlatDemand     *FlatDemandStructure `json:"flatDemand,omitempty"`
	FlatDemandUnit string               `json:"flatDemandUnit,omitempty"`

	FixedCharge      FixedCharge `json:"fixedCharge,omitzero"`
	MinMonthlyCharge float64     `json:"minMonthlyCharge,omitempty"`
}

// HasDemand reports whether TOU demand charges are fully configured.
// Note a tariff can be constructed with only one half present; the
// validator flags that as an error.
func (t *Tariff) HasDemand() bool {
	return t.DemandSchedule != nil && len(t.DemandRates) > 0
}

// HasFlatDemand reports whether seasonal flat-demand charges apply.
func (t *Tariff) HasFlatDemand() bool {
	return t.FlatDemand != nil && len(t.FlatDemand.Periods) > 0
}

// HasFixedCharge reports whether a nonzero fixed charge applies.
func (t *Tariff) HasFixedCharge() bool {
	return t.FixedCharge.Amount != 0
}
