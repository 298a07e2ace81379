package types

import "time"

// PeriodEnergy totals consumption and cost for one TOU energy period.
type PeriodEnergy struct {
	Period int     `json:"period"`
	Label  string  `json:"label,omitempty"`
	KWH    float64 `json:"kwh"`
	Cost   float64 `json:"cost"`
}

// DemandPeak is the billable peak for one month and TOU demand period.
// The peak is the maximum demand observed among samples resolving to that
// period within the month, not a sum.
type DemandPeak struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Period int        `json:"period"`
	PeakKW float64    `json:"peakKW"`
	Cost   float64    `json:"cost"`
}

// FlatDemandPeak is the monthly whole-month peak billed at a seasonal
// flat rate, irrespective of TOU period.
type FlatDemandPeak struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Season int        `json:"season"`
	PeakKW float64    `json:"peakKW"`
	Cost   float64    `json:"cost"`
}

// MonthlyBill summarizes the charges for one calendar month.
type MonthlyBill struct {
	Year           int        `json:"year"`
	Month          time.Month `json:"month"`
	TotalKWH       float64    `json:"totalKWH"`
	PeakKW         float64    `json:"peakKW"`
	AverageKW      float64    `json:"averageKW"`
	LoadFactor     float64    `json:"loadFactor"`
	EnergyCost     float64    `json:"energyCost"`
	TOUDemandCost  float64    `json:"touDemandCost"`
	FlatDemandCost float64    `json:"flatDemandCost"`
	FixedCost      float64    `json:"fixedCost"`
	TotalCost      float64    `json:"totalCost"`
}

// BillBreakdown is the result of applying a tariff to a load profile.
type BillBreakdown struct {
	EnergyCost     float64 `json:"energyCost"`
	TOUDemandCost  float64 `json:"touDemandCost"`
	FlatDemandCost float64 `json:"flatDemandCost"`
	FixedCost      float64 `json:"fixedCost"`
	TotalCost      float64 `json:"totalCost"`

	EnergyByPeriod  []PeriodEnergy   `json:"energyByPeriod,omitempty"`
	DemandPeaks     []DemandPeak     `json:"demandPeaks,omitempty"`
	FlatDemandPeaks []FlatDemandPeak `json:"flatDemandPeaks,omitempty"`
	Months          []MonthlyBill    `json:"months,omitempty"`

	TotalKWH   float64 `json:"totalKWH"`
	PeakKW     float64 `json:"peakKW"`
	AverageKW  float64 `json:"averageKW"`
	LoadFactor float64 `json:"loadFactor"`
}
