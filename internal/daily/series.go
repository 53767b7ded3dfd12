package daily

import (
	"time"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

// Series is the result of a daily request: the final table together with
// what was asked for.
type Series struct {
	table    *timeseries.Table
	stations []string
	start    time.Time
	end      time.Time
	model    bool
	point    *models.Point
}

// NewSeries wraps an already loaded table.
func NewSeries(tbl *timeseries.Table, stations []string, start, end time.Time, model bool) *Series {
	if tbl == nil {
		tbl = timeseries.Empty()
	}
	return &Series{
		table:    tbl,
		stations: append([]string(nil), stations...),
		start:    start,
		end:      end,
		model:    model,
	}
}

func (s *Series) Table() *timeseries.Table { return s.table }

// Stations returns the station IDs the table is keyed by. For a point series
// this is the placeholder ID.
func (s *Series) Stations() []string { return append([]string(nil), s.stations...) }

func (s *Series) Start() time.Time { return s.start }

func (s *Series) End() time.Time { return s.end }

func (s *Series) Model() bool { return s.model }

// Point returns the point a series was resolved for, or nil.
func (s *Series) Point() *models.Point { return s.point }

// ExpectedRows is the number of calendar days in [start, end], i.e. the
// rows one station would have without gaps. It is 0 without a full range.
func (s *Series) ExpectedRows() int {
	if s.start.IsZero() || s.end.IsZero() {
		return 0
	}
	start := timeseries.Day(s.start)
	end := timeseries.Day(s.end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Coverage is the share of expected rows present across all stations,
// capped at 1. It is 0 when nothing is expected.
func (s *Series) Coverage() float64 {
	expected := s.ExpectedRows() * len(s.stations)
	if expected == 0 {
		return 0
	}
	c := float64(s.table.Len()) / float64(expected)
	if c > 1 {
		c = 1
	}
	return c
}

// Aggregate resamples the series to a coarser frequency using the daily
// aggregation table.
func (s *Series) Aggregate(freq timeseries.Frequency) *timeseries.Table {
	return timeseries.Resample(s.table, freq, schema.Daily())
}
