// Package profile reads, writes and synthesizes load profiles.
package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tariffscope/tariffscope/pkg/types"
)

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
}

// ParseCSV reads a load profile from CSV. The file needs a timestamp
// column and either a demand column (load_kW or kW) or an energy column
// (kWh). When only energy is present, demand is derived from each
// sample's interval. Unsorted rows are sorted by timestamp.
func ParseCSV(r io.Reader) (types.LoadProfile, error) {
	var lp types.LoadProfile

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return lp, fmt.Errorf("failed to read csv header: %w", err)
	}

	tsCol, demandCol, energyCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp":
			tsCol = i
		case "load_kw", "kw", "demand_kw":
			demandCol = i
		case "kwh", "energy_kwh":
			energyCol = i
		}
	}
	if tsCol < 0 {
		return lp, fmt.Errorf("csv must have a timestamp column")
	}
	if demandCol < 0 && energyCol < 0 {
		return lp, fmt.Errorf("csv must have a load_kW or kWh column")
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lp, fmt.Errorf("failed to read csv row: %w", err)
		}
		line++

		ts, err := parseTimestamp(record[tsCol])
		if err != nil {
			return lp, fmt.Errorf("row %d: %w", line, err)
		}
		sample := types.Sample{Timestamp: ts}
		if demandCol >= 0 {
			sample.DemandKW, err = strconv.ParseFloat(strings.TrimSpace(record[demandCol]), 64)
			if err != nil {
				return lp, fmt.Errorf("row %d: invalid demand value %q", line, record[demandCol])
			}
		}
		if energyCol >= 0 {
			sample.EnergyKWH, err = strconv.ParseFloat(strings.TrimSpace(record[energyCol]), 64)
			if err != nil {
				return lp, fmt.Errorf("row %d: invalid energy value %q", line, record[energyCol])
			}
			sample.HasEnergy = true
		}
		lp.Samples = append(lp.Samples, sample)
	}

	if !lp.Sorted() {
		lp.Sort()
	}

	// derive demand from interval energy when the source only has kWh
	if demandCol < 0 {
		for i := range lp.Samples {
			if h := lp.DurationAt(i).Hours(); h > 0 {
				lp.Samples[i].DemandKW = lp.Samples[i].EnergyKWH / h
			}
		}
	}

	return lp, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// WriteCSV writes the profile with timestamp, load_kW and kWh columns.
func WriteCSV(w io.Writer, lp types.LoadProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "load_kW", "kWh"}); err != nil {
		return err
	}
	for i, s := range lp.Samples {
		row := []string{
			s.Timestamp.Format(time.RFC3339),
			fmtFloat(s.DemandKW),
			fmtFloat(lp.EnergyAt(i)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
