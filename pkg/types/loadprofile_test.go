package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyProfile(start time.Time, demands ...float64) LoadProfile {
	var lp LoadProfile
	for i, d := range demands {
		lp.Samples = append(lp.Samples, Sample{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			DemandKW:  d,
		})
	}
	return lp
}

func TestLoadProfileDurations(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("uniform hourly", func(t *testing.T) {
		lp := hourlyProfile(start, 10, 10, 10)
		for i := range lp.Samples {
			assert.Equal(t, time.Hour, lp.DurationAt(i))
		}
	})

	t.Run("irregular gaps", func(t *testing.T) {
		lp := LoadProfile{Samples: []Sample{
			{Timestamp: start, DemandKW: 4},
			{Timestamp: start.Add(15 * time.Minute), DemandKW: 8},
			{Timestamp: start.Add(75 * time.Minute), DemandKW: 8},
		}}
		assert.Equal(t, 15*time.Minute, lp.DurationAt(0))
		assert.Equal(t, time.Hour, lp.DurationAt(1))
		// last sample reuses the preceding gap
		assert.Equal(t, time.Hour, lp.DurationAt(2))
	})

	t.Run("single sample defaults to one hour", func(t *testing.T) {
		lp := LoadProfile{Samples: []Sample{{Timestamp: start, DemandKW: 5}}}
		assert.Equal(t, time.Hour, lp.DurationAt(0))
		assert.InDelta(t, 5.0, lp.TotalKWH(), 1e-9)
	})
}

func TestLoadProfileEnergy(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("derived from demand", func(t *testing.T) {
		lp := hourlyProfile(start, 10, 10)
		assert.InDelta(t, 10.0, lp.EnergyAt(0), 1e-9)
		assert.InDelta(t, 20.0, lp.TotalKWH(), 1e-9)
	})

	t.Run("measured energy wins", func(t *testing.T) {
		lp := hourlyProfile(start, 10, 10)
		lp.Samples[0].EnergyKWH = 3
		lp.Samples[0].HasEnergy = true
		assert.InDelta(t, 3.0, lp.EnergyAt(0), 1e-9)
	})

	t.Run("measured zero is respected", func(t *testing.T) {
		lp := hourlyProfile(start, 10, 10)
		lp.Samples[0].HasEnergy = true
		assert.Zero(t, lp.EnergyAt(0))
	})
}

func TestLoadProfileStats(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("load factor", func(t *testing.T) {
		lp := hourlyProfile(start, 50, 100, 50)
		assert.InDelta(t, 100.0, lp.PeakKW(), 1e-9)
		assert.InDelta(t, 200.0/3.0, lp.AverageKW(), 1e-9)
		assert.InDelta(t, 2.0/3.0, lp.LoadFactor(), 1e-9)
	})

	t.Run("empty profile", func(t *testing.T) {
		var lp LoadProfile
		assert.Zero(t, lp.PeakKW())
		assert.Zero(t, lp.AverageKW())
		assert.Zero(t, lp.LoadFactor())
		first, last := lp.Span()
		assert.True(t, first.IsZero())
		assert.True(t, last.IsZero())
	})

	t.Run("span includes last interval", func(t *testing.T) {
		lp := hourlyProfile(start, 1, 1)
		first, end := lp.Span()
		assert.Equal(t, start, first)
		assert.Equal(t, start.Add(2*time.Hour), end)
	})
}

func TestLoadProfileSort(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	lp := LoadProfile{Samples: []Sample{
		{Timestamp: start.Add(2 * time.Hour), DemandKW: 3},
		{Timestamp: start, DemandKW: 1},
		{Timestamp: start.Add(time.Hour), DemandKW: 2},
	}}
	require.False(t, lp.Sorted())
	lp.Sort()
	require.True(t, lp.Sorted())
	assert.Equal(t, 1.0, lp.Samples[0].DemandKW)
	assert.Equal(t, 3.0, lp.Samples[2].DemandKW)
}
