package schema

import (
	"database/sql"
	"math"
	"strings"
	"testing"

	"github.com/lox/meteodaily/internal/models"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestDailyColumns(t *testing.T) {
	s := Daily()
	cols := s.Columns()
	if len(cols) != 10 {
		t.Fatalf("len(Columns) = %d, want 10", len(cols))
	}
	want := []string{"date", "tavg", "tmin", "tmax", "prcp", "snow", "wdir", "wspd", "wpgt", "pres", "tsun"}
	header := s.Header()
	for i, name := range want {
		if header[i] != name {
			t.Errorf("Header[%d] = %q, want %q", i, header[i], name)
		}
	}
	for _, c := range cols {
		if s.Type(c) != "float64" {
			t.Errorf("Type(%v) = %q, want float64", c, s.Type(c))
		}
		if s.Reducer(c) == nil {
			t.Errorf("Reducer(%v) is nil", c)
		}
	}

	// Mutating the returned slice must not affect the schema.
	cols[0] = TSun
	if Daily().Columns()[0] != TAvg {
		t.Error("Columns() exposed internal slice")
	}
}

func TestParseColumn(t *testing.T) {
	for _, c := range Daily().Columns() {
		got, err := ParseColumn(c.String())
		if err != nil {
			t.Fatalf("ParseColumn(%q): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseColumn(%q) = %v", c, got)
		}
	}
	if _, err := ParseColumn("humidity"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestField(t *testing.T) {
	var obs models.DailyObservation
	for i, c := range Daily().Columns() {
		*c.Field(&obs) = nf(float64(i))
	}
	if obs.TAvg.Float64 != 0 || obs.WDir.Float64 != 5 || obs.TSun.Float64 != 9 {
		t.Errorf("Field wrote to wrong fields: %+v", obs)
	}
}

func TestIsTemperature(t *testing.T) {
	var temps []string
	for _, c := range Daily().Columns() {
		if c.IsTemperature() {
			temps = append(temps, c.String())
		}
	}
	if strings.Join(temps, ",") != "tavg,tmin,tmax" {
		t.Errorf("temperature columns = %v, want tavg,tmin,tmax", temps)
	}
}

func TestAggregationTable(t *testing.T) {
	values := []sql.NullFloat64{nf(1), nf(4), {}, nf(7)}
	tests := []struct {
		col  Column
		want float64
	}{
		{TAvg, 4},
		{TMin, 1},
		{TMax, 7},
		{Prcp, 12},
		{Snow, 7},
		{WSpd, 4},
		{WPgt, 7},
		{Pres, 4},
		{TSun, 12},
	}
	for _, tt := range tests {
		t.Run(tt.col.String(), func(t *testing.T) {
			got := Reduce(Daily().Reducer(tt.col), values)
			if !got.Valid || math.Abs(got.Float64-tt.want) > 1e-9 {
				t.Errorf("Reduce(%v) = %+v, want %v", tt.col, got, tt.want)
			}
		})
	}
}

func TestReduce_AllNull(t *testing.T) {
	got := Reduce(Sum, []sql.NullFloat64{{}, {}})
	if got.Valid {
		t.Errorf("Reduce(all null) = %+v, want null", got)
	}
}

func TestCircularMean(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		want    float64
		wantNil bool
	}{
		{name: "straddles north", in: []float64{10, 350}, want: 0},
		{name: "single value", in: []float64{270}, want: 270},
		{name: "quadrant", in: []float64{0, 90}, want: 45},
		{name: "west of north", in: []float64{300, 340}, want: 320},
		{name: "opposing cancel", in: []float64{90, 270}, wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CircularMean(tt.in)
			if tt.wantNil {
				if got.Valid {
					t.Errorf("CircularMean(%v) = %v, want null", tt.in, got.Float64)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("CircularMean(%v) = null", tt.in)
			}
			if math.Abs(got.Float64-tt.want) > 1e-6 {
				t.Errorf("CircularMean(%v) = %v, want %v", tt.in, got.Float64, tt.want)
			}
			if got.Float64 < 0 || got.Float64 >= 360 {
				t.Errorf("CircularMean(%v) = %v out of [0, 360)", tt.in, got.Float64)
			}
		})
	}
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name    string
		values  []sql.NullFloat64
		weights []float64
		want    float64
		wantNil bool
	}{
		{name: "equal weights", values: []sql.NullFloat64{nf(10), nf(20)}, weights: []float64{1, 1}, want: 15},
		{name: "skewed", values: []sql.NullFloat64{nf(10), nf(20)}, weights: []float64{3, 1}, want: 12.5},
		{name: "missing excluded", values: []sql.NullFloat64{nf(10), {}, nf(40)}, weights: []float64{1, 5, 1}, want: 25},
		{name: "zero weights", values: []sql.NullFloat64{nf(10), nf(20)}, weights: []float64{0, 0}, wantNil: true},
		{name: "negative weight ignored", values: []sql.NullFloat64{nf(10), nf(20)}, weights: []float64{-1, 2}, want: 20},
		{name: "all null", values: []sql.NullFloat64{{}, {}}, weights: []float64{1, 1}, wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedMean(tt.values, tt.weights)
			if tt.wantNil {
				if got.Valid {
					t.Errorf("WeightedMean = %v, want null", got.Float64)
				}
				return
			}
			if !got.Valid || math.Abs(got.Float64-tt.want) > 1e-9 {
				t.Errorf("WeightedMean = %+v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	if got := Round(nf(12.6666), 1); got.Float64 != 12.7 {
		t.Errorf("Round(12.6666) = %v, want 12.7", got.Float64)
	}
	if got := Round(sql.NullFloat64{}, 1); got.Valid {
		t.Error("Round(null) became valid")
	}
}
