package profile

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tariffscope/tariffscope/pkg/types"
)

// GeneratorConfig controls synthetic load-profile generation.
type GeneratorConfig struct {
	// AverageLoadKW is the target mean demand.
	AverageLoadKW float64 `json:"averageLoadKW"`
	// LoadFactor is the target average/peak ratio (0 < lf <= 1).
	LoadFactor float64 `json:"loadFactor"`

	Year            int `json:"year"`
	Days            int `json:"days"`
	IntervalMinutes int `json:"intervalMinutes"`

	// SeasonalVariation scales a mid-July-peaking annual cycle.
	SeasonalVariation float64 `json:"seasonalVariation"`
	// WeekendFactor scales weekend demand relative to weekdays.
	WeekendFactor  float64 `json:"weekendFactor"`
	DailyVariation float64 `json:"dailyVariation"`
	NoiseLevel     float64 `json:"noiseLevel"`

	// PeriodWeights biases demand per TOU period (peak periods heavier).
	// Unlisted periods default to weight 1.
	PeriodWeights map[int]float64 `json:"periodWeights,omitempty"`

	// Seed makes the output deterministic when nonzero.
	Seed int64 `json:"seed,omitempty"`
}

func (c *GeneratorConfig) withDefaults() GeneratorConfig {
	out := *c
	if out.AverageLoadKW == 0 {
		out.AverageLoadKW = 50
	}
	if out.LoadFactor == 0 {
		out.LoadFactor = 0.6
	}
	if out.Year == 0 {
		out.Year = time.Now().Year()
	}
	if out.Days == 0 {
		out.Days = 365
	}
	if out.IntervalMinutes == 0 {
		out.IntervalMinutes = 15
	}
	if out.WeekendFactor == 0 {
		out.WeekendFactor = 0.85
	}
	return out
}

// Generate synthesizes a load profile aligned with the TOU schedule:
// heavier periods draw more, summer draws more than winter, weekends are
// scaled down, and the overall load factor lands on the target. A fixed
// Seed reproduces the exact same series.
func Generate(sched types.ScheduleMatrix, cfg GeneratorConfig) (types.LoadProfile, error) {
	c := cfg.withDefaults()
	if c.LoadFactor < 0 || c.LoadFactor > 1 {
		return types.LoadProfile{}, fmt.Errorf("load factor must be within (0, 1], got %v", c.LoadFactor)
	}
	if c.AverageLoadKW < 0 {
		return types.LoadProfile{}, fmt.Errorf("average load must be non-negative, got %v", c.AverageLoadKW)
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	start := time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	interval := time.Duration(c.IntervalMinutes) * time.Minute
	count := c.Days * 24 * 60 / c.IntervalMinutes

	var lp types.LoadProfile
	lp.Samples = make([]types.Sample, 0, count)

	dayFactor := 1.0
	currentDay := -1
	for i := 0; i < count; i++ {
		ts := start.Add(time.Duration(i) * interval)

		if ts.YearDay() != currentDay {
			currentDay = ts.YearDay()
			dayFactor = 1 + c.DailyVariation*(2*rng.Float64()-1)
		}

		weight := 1.0
		period := sched.PeriodFor(ts)
		if w, ok := c.PeriodWeights[period]; ok {
			weight = w
		} else if c.PeriodWeights == nil {
			// default bias: higher periods are peakier
			weight = 1 + 0.5*float64(period)
		}

		// annual cycle peaking around mid-July
		seasonal := 1 + c.SeasonalVariation*math.Cos(2*math.Pi*float64(ts.YearDay()-196)/365)

		demand := c.AverageLoadKW * weight * seasonal * dayFactor
		if types.IsWeekend(ts) {
			demand *= c.WeekendFactor
		}
		demand *= 1 + c.NoiseLevel*(2*rng.Float64()-1)

		lp.Samples = append(lp.Samples, types.Sample{Timestamp: ts, DemandKW: demand})
	}

	rescaleToLoadFactor(&lp, c.AverageLoadKW, c.LoadFactor)
	return lp, nil
}

// rescaleToLoadFactor applies an affine transform so the series keeps its
// shape but lands on the requested mean and peak. Values are clamped at
// zero afterwards, which can nudge the realized load factor slightly; the
// contract is "within tolerance", not exact.
func rescaleToLoadFactor(lp *types.LoadProfile, avg, lf float64) {
	if len(lp.Samples) == 0 || lf == 0 {
		return
	}
	var mean, peak float64
	for _, s := range lp.Samples {
		mean += s.DemandKW
		if s.DemandKW > peak {
			peak = s.DemandKW
		}
	}
	mean /= float64(len(lp.Samples))

	targetPeak := avg / lf
	scale := 0.0
	if peak > mean {
		scale = (targetPeak - avg) / (peak - mean)
	}
	for i := range lp.Samples {
		d := avg + (lp.Samples[i].DemandKW-mean)*scale
		if d < 0 {
			d = 0
		}
		lp.Samples[i].DemandKW = d
	}
}
