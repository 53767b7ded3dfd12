package models

import (
	"database/sql"
	"time"
)

// PlaceholderStationID identifies series synthesized for a point rather than
// observed at a real station.
const PlaceholderStationID = "XXXXX"

type Station struct {
	StationID  string       `json:"station_id"`
	Name       string       `json:"name"`
	Country    string       `json:"country"`
	Region     string       `json:"region"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	Elevation  float64      `json:"elevation"`
	Timezone   string       `json:"timezone"`
	DailyStart sql.NullTime `json:"daily_start"`
	DailyEnd   sql.NullTime `json:"daily_end"`
}

// DailyObservation is one (station, date) row. Date is always UTC midnight.
type DailyObservation struct {
	StationID string          `msgpack:"station"`
	Date      time.Time       `msgpack:"date"`
	TAvg      sql.NullFloat64 `msgpack:"tavg"`
	TMin      sql.NullFloat64 `msgpack:"tmin"`
	TMax      sql.NullFloat64 `msgpack:"tmax"`
	Prcp      sql.NullFloat64 `msgpack:"prcp"`
	Snow      sql.NullFloat64 `msgpack:"snow"`
	WDir      sql.NullFloat64 `msgpack:"wdir"`
	WSpd      sql.NullFloat64 `msgpack:"wspd"`
	WPgt      sql.NullFloat64 `msgpack:"wpgt"`
	Pres      sql.NullFloat64 `msgpack:"pres"`
	TSun      sql.NullFloat64 `msgpack:"tsun"`
}

// StationMeta is the per-station input to point resolution.
type StationMeta struct {
	StationID string  `json:"station_id"`
	Distance  float64 `json:"distance"`  // meters from the point
	Elevation float64 `json:"elevation"` // meters
	Score     float64 `json:"score"`
}

// Point is a location without observations of its own.
type Point struct {
	Latitude  float64
	Longitude float64
	Alt       sql.NullFloat64 // target altitude in meters
	Method    string          // "nearest" or "weighted"
	AdaptTemp bool
	Radius    float64 // search radius in meters
	MaxCount  int
	AltRange  float64 // max |elevation - alt| in meters
}

const (
	DefaultRadius   = 35000
	DefaultMaxCount = 4
	DefaultAltRange = 350
)

// NewPoint returns a point with the default search parameters, nearest
// resolution and temperature adaptation enabled.
func NewPoint(lat, lon float64) Point {
	return Point{
		Latitude:  lat,
		Longitude: lon,
		Method:    "nearest",
		AdaptTemp: true,
		Radius:    DefaultRadius,
		MaxCount:  DefaultMaxCount,
		AltRange:  DefaultAltRange,
	}
}

// WithAlt sets the target altitude.
func (p Point) WithAlt(alt float64) Point {
	p.Alt = sql.NullFloat64{Float64: alt, Valid: true}
	return p
}

// LoadRun records one per-station load for auditing.
type LoadRun struct {
	ID         int64
	StationID  string
	Endpoint   string
	Source     string // "cache" or "remote"
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int
	Success    bool
	Error      sql.NullString
}
