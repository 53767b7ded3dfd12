// Package schema describes the fixed daily variable set and how each
// variable is collapsed when several observations share one bucket.
package schema

import (
	"database/sql"
	"fmt"

	"github.com/lox/meteodaily/internal/models"
)

type Column int

const (
	TAvg Column = iota
	TMin
	TMax
	Prcp
	Snow
	WDir
	WSpd
	WPgt
	Pres
	TSun
)

var columnNames = [...]string{"tavg", "tmin", "tmax", "prcp", "snow", "wdir", "wspd", "wpgt", "pres", "tsun"}

func (c Column) String() string {
	if c < 0 || int(c) >= len(columnNames) {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnNames[c]
}

// ParseColumn maps a column name such as "tavg" to its Column.
func ParseColumn(name string) (Column, error) {
	for i, n := range columnNames {
		if n == name {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

// Field returns a pointer to the column's value within obs.
func (c Column) Field(obs *models.DailyObservation) *sql.NullFloat64 {
	switch c {
	case TAvg:
		return &obs.TAvg
	case TMin:
		return &obs.TMin
	case TMax:
		return &obs.TMax
	case Prcp:
		return &obs.Prcp
	case Snow:
		return &obs.Snow
	case WDir:
		return &obs.WDir
	case WSpd:
		return &obs.WSpd
	case WPgt:
		return &obs.WPgt
	case Pres:
		return &obs.Pres
	case TSun:
		return &obs.TSun
	}
	panic(fmt.Sprintf("schema: no field for %v", c))
}

// IsTemperature reports whether the column holds a temperature that is
// subject to elevation adjustment.
func (c Column) IsTemperature() bool {
	return c == TAvg || c == TMin || c == TMax
}

// Schema is the immutable description of a granularity's variable set.
// Build one with Daily and share it by pointer.
type Schema struct {
	granularity string
	columns     []Column
	types       map[Column]string
	reducers    map[Column]Reducer
}

var daily = &Schema{
	granularity: "daily",
	columns:     []Column{TAvg, TMin, TMax, Prcp, Snow, WDir, WSpd, WPgt, Pres, TSun},
	types: map[Column]string{
		TAvg: "float64", TMin: "float64", TMax: "float64", Prcp: "float64", Snow: "float64",
		WDir: "float64", WSpd: "float64", WPgt: "float64", Pres: "float64", TSun: "float64",
	},
	reducers: map[Column]Reducer{
		TAvg: Mean,
		TMin: Min,
		TMax: Max,
		Prcp: Sum,
		Snow: Max,
		WDir: CircularMean,
		WSpd: Mean,
		WPgt: Max,
		Pres: Mean,
		TSun: Sum,
	},
}

// Daily returns the schema for daily observations.
func Daily() *Schema { return daily }

func (s *Schema) Granularity() string { return s.granularity }

// Columns returns the meteorological columns in their fixed order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Header returns the column names as they appear in the remote files,
// starting with the date column.
func (s *Schema) Header() []string {
	h := make([]string, 0, len(s.columns)+1)
	h = append(h, "date")
	for _, c := range s.columns {
		h = append(h, c.String())
	}
	return h
}

// Type returns the storage type of a column.
func (s *Schema) Type(c Column) string { return s.types[c] }

// Reducer returns the aggregation function for a column.
func (s *Schema) Reducer(c Column) Reducer { return s.reducers[c] }
