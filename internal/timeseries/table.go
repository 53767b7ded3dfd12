// Package timeseries holds observation tables keyed by (station, date).
package timeseries

import (
	"sort"
	"time"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
)

// Table is an immutable set of daily observations, unique per
// (station, date). Rows are grouped by station in insertion order and sorted
// by date within each station.
type Table struct {
	stations []string
	rows     []models.DailyObservation
}

// Empty returns a table with no stations and no rows.
func Empty() *Table {
	return &Table{}
}

// FromStation builds a table for a single station. Rows are sorted by date;
// when a date repeats, the last row wins. The station ID of every row is
// overwritten with stationID.
func FromStation(stationID string, rows []models.DailyObservation) *Table {
	byDate := make(map[time.Time]int, len(rows))
	out := make([]models.DailyObservation, 0, len(rows))
	for _, r := range rows {
		r.StationID = stationID
		r.Date = Day(r.Date)
		if i, ok := byDate[r.Date]; ok {
			out[i] = r
			continue
		}
		byDate[r.Date] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return &Table{stations: []string{stationID}, rows: out}
}

// Concat unions tables in order. A station already present is not added
// again.
func Concat(tables ...*Table) *Table {
	seen := make(map[string]bool)
	out := &Table{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, id := range t.stations {
			if seen[id] {
				continue
			}
			seen[id] = true
			out.stations = append(out.stations, id)
			out.rows = append(out.rows, t.Station(id)...)
		}
	}
	return out
}

// Columns returns the fixed variable columns carried by every row.
func (t *Table) Columns() []schema.Column {
	return schema.Daily().Columns()
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) IsEmpty() bool { return len(t.rows) == 0 }

// Stations returns station IDs in insertion order.
func (t *Table) Stations() []string {
	out := make([]string, len(t.stations))
	copy(out, t.stations)
	return out
}

// Rows returns a copy of all rows.
func (t *Table) Rows() []models.DailyObservation {
	out := make([]models.DailyObservation, len(t.rows))
	copy(out, t.rows)
	return out
}

// Station returns a copy of the rows for one station.
func (t *Table) Station(id string) []models.DailyObservation {
	var out []models.DailyObservation
	for _, r := range t.rows {
		if r.StationID == id {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the row for (station, date).
func (t *Table) Lookup(stationID string, date time.Time) (models.DailyObservation, bool) {
	date = Day(date)
	for _, r := range t.rows {
		if r.StationID == stationID && r.Date.Equal(date) {
			return r, true
		}
	}
	return models.DailyObservation{}, false
}

// Filter keeps rows whose date lies in [start, end]. A zero bound is open.
func (t *Table) Filter(start, end time.Time) *Table {
	out := &Table{stations: t.Stations()}
	for _, r := range t.rows {
		if !start.IsZero() && r.Date.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && r.Date.After(Day(end)) {
			continue
		}
		out.rows = append(out.rows, r)
	}
	return out
}

// Map returns a new table with fn applied to every row. fn must not change
// the row's key.
func (t *Table) Map(fn func(models.DailyObservation) models.DailyObservation) *Table {
	out := &Table{stations: t.Stations(), rows: make([]models.DailyObservation, len(t.rows))}
	for i, r := range t.rows {
		out.rows[i] = fn(r)
	}
	return out
}

// Round rounds every variable to the given number of decimals. Wind
// direction stays in [0, 360) after rounding.
func (t *Table) Round(decimals int) *Table {
	cols := t.Columns()
	return t.Map(func(r models.DailyObservation) models.DailyObservation {
		for _, c := range cols {
			f := c.Field(&r)
			*f = schema.Round(*f, decimals)
		}
		if r.WDir.Valid && r.WDir.Float64 >= 360 {
			r.WDir.Float64 -= 360
		}
		return r
	})
}

// Day returns UTC midnight of t's calendar date in t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
