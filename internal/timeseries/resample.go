package timeseries

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
)

// Frequency is the width of an output bucket.
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	}
	return fmt.Sprintf("frequency(%d)", int(f))
}

// ParseFrequency accepts the names returned by String.
func ParseFrequency(s string) (Frequency, error) {
	for _, f := range []Frequency{Daily, Weekly, Monthly, Yearly} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

// Truncate returns the start of the bucket containing t. Weeks start on
// Monday.
func (f Frequency) Truncate(t time.Time) time.Time {
	d := Day(t)
	switch f {
	case Weekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// Bucket is the set of rows sharing one bucket start, in station order.
type Bucket struct {
	Start time.Time
	Rows  []models.DailyObservation
}

// Buckets groups all rows of the table by bucket start, ascending. Within a
// bucket, rows keep the table's station order.
func (t *Table) Buckets(f Frequency) []Bucket {
	idx := make(map[time.Time]int)
	var out []Bucket
	for _, r := range t.rows {
		start := f.Truncate(r.Date)
		i, ok := idx[start]
		if !ok {
			i = len(out)
			idx[start] = i
			out = append(out, Bucket{Start: start})
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Resample collapses each station's rows onto buckets of width f using the
// schema's aggregation table. Results are rounded to one decimal.
func Resample(t *Table, f Frequency, s *schema.Schema) *Table {
	out := &Table{stations: t.Stations()}
	cols := s.Columns()
	for _, id := range t.stations {
		station := &Table{stations: []string{id}, rows: t.Station(id)}
		for _, b := range station.Buckets(f) {
			row := models.DailyObservation{StationID: id, Date: b.Start}
			for _, c := range cols {
				values := make([]sql.NullFloat64, len(b.Rows))
				for i := range b.Rows {
					values[i] = *c.Field(&b.Rows[i])
				}
				*c.Field(&row) = schema.Reduce(s.Reducer(c), values)
			}
			out.rows = append(out.rows, row)
		}
	}
	return out.Round(1)
}
