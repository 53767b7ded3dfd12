package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lox/meteodaily/internal/models"
)

const (
	earthRadius = 6371000.0 // meters

	// Share of the score taken by distance when the point has an altitude.
	distanceWeight = 0.6
	altitudeWeight = 0.4

	// Recent requests against model data skip the inventory filter since
	// model rows extend past the observed inventory.
	inventoryAge = 180 * 24 * time.Hour
)

// Distance returns the great-circle distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const p = math.Pi / 180

	dLat := (lat2 - lat1) * p
	dLon := (lon2 - lon1) * p

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*p)*math.Cos(lat2*p)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NearbyStations ranks stations around p for resolution. Stations outside
// the radius, outside the altitude range (when p has an altitude) or without
// inventory covering [start, end] are dropped. The result is ordered by
// descending score and holds at most p.MaxCount entries.
func (s *Store) NearbyStations(ctx context.Context, p models.Point, granularity string, start, end time.Time, model bool) ([]models.StationMeta, error) {
	if granularity != "daily" {
		return nil, fmt.Errorf("nearby stations: unsupported granularity %q", granularity)
	}

	radius := p.Radius
	if radius <= 0 {
		radius = models.DefaultRadius
	}
	altRange := p.AltRange
	if altRange <= 0 {
		altRange = models.DefaultAltRange
	}
	maxCount := p.MaxCount
	if maxCount <= 0 {
		maxCount = models.DefaultMaxCount
	}

	dLat := radius / earthRadius * 180 / math.Pi
	minLat := math.Max(p.Latitude-dLat, -90)
	maxLat := math.Min(p.Latitude+dLat, 90)
	minLon, maxLon := -180.0, 180.0
	if c := math.Cos(p.Latitude * math.Pi / 180); minLat > -90 && maxLat < 90 && c > 1e-6 {
		dLon := dLat / c
		if dLon < 180 {
			minLon, maxLon = p.Longitude-dLon, p.Longitude+dLon
		}
	}

	candidates, err := s.stationsInBox(ctx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("nearby stations: %w", err)
	}

	checkInventory := !start.IsZero() && !end.IsZero() &&
		(!model || s.now().Sub(end) > inventoryAge)

	var metas []models.StationMeta
	for _, st := range candidates {
		d := Distance(p.Latitude, p.Longitude, st.Latitude, st.Longitude)
		if d > radius {
			continue
		}
		if checkInventory && !coversRange(st, start, end) {
			continue
		}

		score := 1 - d/radius
		if p.Alt.Valid {
			altDiff := math.Abs(p.Alt.Float64 - st.Elevation)
			if altDiff > altRange {
				continue
			}
			score = (1-d/radius)*distanceWeight + (1-altDiff/altRange)*altitudeWeight
		}

		metas = append(metas, models.StationMeta{
			StationID: st.StationID,
			Distance:  d,
			Elevation: st.Elevation,
			Score:     score,
		})
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Score != metas[j].Score {
			return metas[i].Score > metas[j].Score
		}
		return metas[i].StationID < metas[j].StationID
	})
	if len(metas) > maxCount {
		metas = metas[:maxCount]
	}
	return metas, nil
}

func coversRange(st models.Station, start, end time.Time) bool {
	if !st.DailyStart.Valid || !st.DailyEnd.Valid {
		return false
	}
	first := st.DailyStart.Time.UTC().Truncate(24 * time.Hour)
	last := st.DailyEnd.Time.UTC().Truncate(24 * time.Hour)
	return !first.After(start.UTC()) && !last.Before(end.UTC().Truncate(24*time.Hour))
}
