package types

import (
	"sort"
	"time"
)

// Sample is one observation in a load profile.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	DemandKW  float64   `json:"demandKW"`
	// EnergyKWH is the measured consumption for the interval, when the
	// source provided one. HasEnergy distinguishes a measured zero from
	// an absent value.
	EnergyKWH float64 `json:"energyKWH,omitempty"`
	HasEnergy bool    `json:"-"`
}

// LoadProfile is an ordered series of demand samples. Intervals are
// commonly uniform (15 or 60 minutes) but that is not enforced; consumers
// derive a per-sample duration from the neighboring gaps.
type LoadProfile struct {
	Samples []Sample `json:"samples"`
}

// Len returns the number of samples.
func (lp *LoadProfile) Len() int {
	return len(lp.Samples)
}

// Sort orders the samples ascending by timestamp.
func (lp *LoadProfile) Sort() {
	sort.SliceStable(lp.Samples, func(i, j int) bool {
		return lp.Samples[i].Timestamp.Before(lp.Samples[j].Timestamp)
	})
}

// Sorted reports whether the samples are already in ascending order.
func (lp *LoadProfile) Sorted() bool {
	for i := 1; i < len(lp.Samples); i++ {
		if lp.Samples[i].Timestamp.Before(lp.Samples[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// DurationAt returns the billing duration of sample i, derived from the
// gap to the next sample. The last sample reuses the preceding gap so
// irregular series still bill every sample. A single-sample profile
// defaults to one hour.
func (lp *LoadProfile) DurationAt(i int) time.Duration {
	n := len(lp.Samples)
	if n < 2 {
		return time.Hour
	}
	if i >= n-1 {
		return lp.Samples[n-1].Timestamp.Sub(lp.Samples[n-2].Timestamp)
	}
	return lp.Samples[i+1].Timestamp.Sub(lp.Samples[i].Timestamp)
}

// EnergyAt returns the consumption of sample i in kWh, preferring a
// measured value and falling back to demand times duration.
func (lp *LoadProfile) EnergyAt(i int) float64 {
	s := lp.Samples[i]
	if s.HasEnergy {
		return s.EnergyKWH
	}
	return s.DemandKW * lp.DurationAt(i).Hours()
}

// TotalKWH returns the total consumption across the profile.
func (lp *LoadProfile) TotalKWH() float64 {
	var total float64
	for i := range lp.Samples {
		total += lp.EnergyAt(i)
	}
	return total
}

// PeakKW returns the maximum demand observed, zero for an empty profile.
func (lp *LoadProfile) PeakKW() float64 {
	var peak float64
	for _, s := range lp.Samples {
		if s.DemandKW > peak {
			peak = s.DemandKW
		}
	}
	return peak
}

// AverageKW returns the duration-weighted average demand.
func (lp *LoadProfile) AverageKW() float64 {
	var kwh, hours float64
	for i, s := range lp.Samples {
		h := lp.DurationAt(i).Hours()
		kwh += s.DemandKW * h
		hours += h
	}
	if hours == 0 {
		return 0
	}
	return kwh / hours
}

// LoadFactor returns average demand over peak demand, a measure of how
// flat the profile is. Zero when the profile is empty or never draws load.
func (lp *LoadProfile) LoadFactor() float64 {
	peak := lp.PeakKW()
	if peak == 0 {
		return 0
	}
	return lp.AverageKW() / peak
}

// Span returns the first timestamp and the end of the last sample's
// interval. Zero times for an empty profile.
func (lp *LoadProfile) Span() (time.Time, time.Time) {
	if len(lp.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	last := len(lp.Samples) - 1
	return lp.Samples[0].Timestamp, lp.Samples[last].Timestamp.Add(lp.DurationAt(last))
}
