package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lox/meteodaily/internal/models"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const stationColumns = `station_id, name, country, region, latitude, longitude, elevation, timezone, daily_start, daily_end`

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (`+stationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			region = excluded.region,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			timezone = excluded.timezone,
			daily_start = excluded.daily_start,
			daily_end = excluded.daily_end
	`, st.StationID, st.Name, st.Country, st.Region, st.Latitude, st.Longitude, st.Elevation,
		st.Timezone, st.DailyStart, st.DailyEnd)
	return err
}

// GetStation returns nil when the station is unknown.
func (s *Store) GetStation(stationID string) (*models.Station, error) {
	row := s.db.QueryRow(`SELECT `+stationColumns+` FROM stations WHERE station_id = ?`, stationID)
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) CountStations() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM stations`).Scan(&n)
	return n, err
}

// stationsInBox returns stations whose coordinates fall inside the given
// latitude/longitude bounds. Longitude bounds may wrap the antimeridian.
func (s *Store) stationsInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]models.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM stations WHERE latitude BETWEEN ? AND ?`
	args := []interface{}{minLat, maxLat}
	switch {
	case minLon < -180:
		query += ` AND (longitude >= ? OR longitude <= ?)`
		args = append(args, minLon+360, maxLon)
	case maxLon > 180:
		query += ` AND (longitude >= ? OR longitude <= ?)`
		args = append(args, minLon, maxLon-360)
	default:
		query += ` AND longitude BETWEEN ? AND ?`
		args = append(args, minLon, maxLon)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(sc scanner) (models.Station, error) {
	var (
		st                    models.Station
		name, country, region sql.NullString
		timezone              sql.NullString
		elevation             sql.NullFloat64
	)
	err := sc.Scan(&st.StationID, &name, &country, &region, &st.Latitude, &st.Longitude,
		&elevation, &timezone, &st.DailyStart, &st.DailyEnd)
	if err != nil {
		return st, err
	}
	st.Name = name.String
	st.Country = country.String
	st.Region = region.String
	st.Timezone = timezone.String
	st.Elevation = elevation.Float64
	return st, nil
}
