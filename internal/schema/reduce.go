package schema

import (
	"database/sql"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reducer collapses the non-null values of one variable into a single value.
// It is never called with an empty slice.
type Reducer func(values []float64) sql.NullFloat64

// Reduce drops nulls and applies r. All-null input yields null.
func Reduce(r Reducer, values []sql.NullFloat64) sql.NullFloat64 {
	vs := valid(values)
	if len(vs) == 0 {
		return sql.NullFloat64{}
	}
	return r(vs)
}

func valid(values []sql.NullFloat64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid && !math.IsNaN(v.Float64) {
			out = append(out, v.Float64)
		}
	}
	return out
}

func Mean(values []float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: stat.Mean(values, nil), Valid: true}
}

func Min(values []float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: floats.Min(values), Valid: true}
}

func Max(values []float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: floats.Max(values), Valid: true}
}

func Sum(values []float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: floats.Sum(values), Valid: true}
}

// resultantEpsilon is the mean resultant length below which directions are
// considered to cancel out.
const resultantEpsilon = 1e-9

// CircularMean averages compass directions in degrees. The result lies in
// [0, 360). It is null when the unit vectors cancel.
func CircularMean(degrees []float64) sql.NullFloat64 {
	rad := make([]float64, len(degrees))
	var sumSin, sumCos float64
	for i, d := range degrees {
		rad[i] = d * math.Pi / 180
		sumSin += math.Sin(rad[i])
		sumCos += math.Cos(rad[i])
	}
	if math.Hypot(sumSin, sumCos)/float64(len(degrees)) < resultantEpsilon {
		return sql.NullFloat64{}
	}

	deg := stat.CircularMean(rad, nil) * 180 / math.Pi
	if math.Abs(deg) < resultantEpsilon {
		deg = 0
	}
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return sql.NullFloat64{Float64: deg, Valid: true}
}

// WeightedMean averages values by weight, skipping nulls and non-positive
// weights. It is null when no positive weight remains.
func WeightedMean(values []sql.NullFloat64, weights []float64) sql.NullFloat64 {
	xs := make([]float64, 0, len(values))
	ws := make([]float64, 0, len(values))
	for i, v := range values {
		if !v.Valid || math.IsNaN(v.Float64) || weights[i] <= 0 {
			continue
		}
		xs = append(xs, v.Float64)
		ws = append(ws, weights[i])
	}
	if len(xs) == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: stat.Mean(xs, ws), Valid: true}
}

// Round rounds v to the given number of decimals. Nulls pass through.
func Round(v sql.NullFloat64, decimals int) sql.NullFloat64 {
	if !v.Valid {
		return v
	}
	p := math.Pow(10, float64(decimals))
	v.Float64 = math.Round(v.Float64*p) / p
	return v
}
