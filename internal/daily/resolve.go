package daily

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/lox/meteodaily/internal/metrics"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

// Method selects how several stations are merged into one point series.
type Method int

const (
	// Nearest takes every variable from the highest-scored station that
	// has a row in the bucket.
	Nearest Method = iota
	// Weighted averages each variable by station score, except wind
	// direction which is taken as in Nearest.
	Weighted
)

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Weighted:
		return "weighted"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps "nearest" (or "") and "weighted" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "nearest":
		return Nearest, nil
	case "weighted":
		return Weighted, nil
	}
	return 0, fmt.Errorf("unknown resolution method %q", s)
}

// TempAdjuster corrects a row's temperatures for the elevation difference
// between its station and the target point.
type TempAdjuster func(row models.DailyObservation, meta models.StationMeta) models.DailyObservation

// NoAdjust leaves rows unchanged.
func NoAdjust(row models.DailyObservation, _ models.StationMeta) models.DailyObservation {
	return row
}

// LapseRate shifts temperatures by 2/3 °C per 100 m that the station lies
// above alt. Null temperatures stay null.
func LapseRate(alt float64) TempAdjuster {
	return func(row models.DailyObservation, meta models.StationMeta) models.DailyObservation {
		delta := (2.0 / 3.0) * ((meta.Elevation - alt) / 100)
		for _, c := range schema.Daily().Columns() {
			if !c.IsTemperature() {
				continue
			}
			f := c.Field(&row)
			if f.Valid {
				f.Float64 += delta
			}
		}
		return row
	}
}

// Resolver merges a multi-station table into a single point series.
type Resolver struct {
	method Method
	adjust TempAdjuster
	freq   timeseries.Frequency
	schema *schema.Schema
}

// NewResolver builds a resolver. A nil adjust means NoAdjust.
func NewResolver(method Method, adjust TempAdjuster, freq timeseries.Frequency) *Resolver {
	if adjust == nil {
		adjust = NoAdjust
	}
	return &Resolver{method: method, adjust: adjust, freq: freq, schema: schema.Daily()}
}

// Resolve returns a new table keyed by (PlaceholderStationID, bucket). An
// empty table or station set is returned unchanged. Every station in tbl
// must appear in meta.
func (r *Resolver) Resolve(tbl *timeseries.Table, meta []models.StationMeta) (*timeseries.Table, error) {
	if tbl == nil || tbl.IsEmpty() || len(tbl.Stations()) == 0 {
		return tbl, nil
	}

	byID := make(map[string]models.StationMeta, len(meta))
	for _, m := range meta {
		byID[m.StationID] = m
	}
	for _, id := range tbl.Stations() {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: station %s", ErrMetadataMissing, id)
		}
	}
	rank := rankByScore(meta)

	adjusted := tbl.Map(func(row models.DailyObservation) models.DailyObservation {
		return r.adjust(row, byID[row.StationID])
	})

	var rows []models.DailyObservation
	for _, b := range adjusted.Buckets(r.freq) {
		sort.SliceStable(b.Rows, func(i, j int) bool {
			return rank[b.Rows[i].StationID] < rank[b.Rows[j].StationID]
		})

		var row models.DailyObservation
		switch r.method {
		case Nearest:
			row = b.Rows[0]
		case Weighted:
			row = r.weighted(b.Rows, byID)
		default:
			return nil, fmt.Errorf("unsupported resolution method %v", r.method)
		}
		row.Date = b.Start
		rows = append(rows, row)
	}

	metrics.PointResolutions.WithLabelValues(r.method.String()).Inc()
	return timeseries.FromStation(models.PlaceholderStationID, rows).Round(1), nil
}

// weighted expects rows ordered by rank.
func (r *Resolver) weighted(rows []models.DailyObservation, byID map[string]models.StationMeta) models.DailyObservation {
	weights := make([]float64, len(rows))
	for i, row := range rows {
		weights[i] = byID[row.StationID].Score
	}

	var out models.DailyObservation
	values := make([]sql.NullFloat64, len(rows))
	for _, c := range r.schema.Columns() {
		if c == schema.WDir {
			continue
		}
		for i := range rows {
			values[i] = *c.Field(&rows[i])
		}
		*c.Field(&out) = schema.WeightedMean(values, weights)
	}
	out.WDir = rows[0].WDir
	return out
}

// rankByScore orders stations by descending score, keeping the given order
// among equal scores.
func rankByScore(meta []models.StationMeta) map[string]int {
	sorted := make([]models.StationMeta, len(meta))
	copy(sorted, meta)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	rank := make(map[string]int, len(sorted))
	for i, m := range sorted {
		if _, ok := rank[m.StationID]; !ok {
			rank[m.StationID] = i
		}
	}
	return rank
}
