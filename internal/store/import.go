package store

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/models"
)

// ImportStations loads a station list in the bulk "lite" JSON format, plain
// or gzipped, and upserts every entry. Entries without an id or coordinates
// are skipped. It returns the number of stations stored.
func (s *Store) ImportStations(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return 0, fmt.Errorf("import stations: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("import stations: read: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("import stations: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return 0, fmt.Errorf("import stations: expected a JSON array")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("import stations: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stations (` + stationColumns + `)
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
	`)
	if err != nil {
		return 0, fmt.Errorf("import stations: prepare: %w", err)
	}
	defer stmt.Close()

	var (
		stored, skipped int
		execErr         error
	)
	doc.ForEach(func(_, entry gjson.Result) bool {
		st, ok := stationFromJSON(entry)
		if !ok {
			skipped++
			return true
		}
		if _, err := stmt.Exec(st.StationID, st.Name, st.Country, st.Region, st.Latitude, st.Longitude,
			st.Elevation, st.Timezone, st.DailyStart, st.DailyEnd); err != nil {
			execErr = fmt.Errorf("import stations: upsert %s: %w", st.StationID, err)
			return false
		}
		stored++
		return true
	})
	if execErr != nil {
		return 0, execErr
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import stations: commit: %w", err)
	}

	log.Infow("store: imported stations", "stored", stored, "skipped", skipped)
	return stored, nil
}

func stationFromJSON(entry gjson.Result) (models.Station, bool) {
	id := entry.Get("id").String()
	lat := entry.Get("location.latitude")
	lon := entry.Get("location.longitude")
	if id == "" || !lat.Exists() || !lon.Exists() {
		return models.Station{}, false
	}

	name := entry.Get("name.en").String()
	if n := entry.Get("name"); n.Type == gjson.String {
		name = n.String()
	}

	return models.Station{
		StationID:  id,
		Name:       name,
		Country:    entry.Get("country").String(),
		Region:     entry.Get("region").String(),
		Latitude:   lat.Float(),
		Longitude:  lon.Float(),
		Elevation:  entry.Get("location.elevation").Float(),
		Timezone:   entry.Get("timezone").String(),
		DailyStart: jsonDate(entry.Get("inventory.daily.start")),
		DailyEnd:   jsonDate(entry.Get("inventory.daily.end")),
	}, true
}

func jsonDate(v gjson.Result) sql.NullTime {
	if v.Type != gjson.String {
		return sql.NullTime{}
	}
	t, err := time.Parse("2006-01-02", v.String())
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
