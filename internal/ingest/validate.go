package ingest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagTempOrder          = "temp_order"
	FlagPrecipNegative     = "precip_negative"
	FlagSnowNegative       = "snow_negative"
	FlagWindDirInvalid     = "wind_dir_invalid"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagSunshineInvalid    = "sunshine_invalid"
)

// ValidateObservation returns quality flags for physically implausible
// values. It does not modify obs.
func ValidateObservation(obs *models.DailyObservation) []string {
	var flags []string

	if outside(obs.TAvg.Valid, obs.TAvg.Float64, -90, 60) ||
		outside(obs.TMin.Valid, obs.TMin.Float64, -90, 60) ||
		outside(obs.TMax.Valid, obs.TMax.Float64, -90, 60) {
		flags = append(flags, FlagTempOutOfRange)
	}

	if obs.TMin.Valid && obs.TMax.Valid && obs.TMin.Float64 > obs.TMax.Float64 {
		flags = append(flags, FlagTempOrder)
	}

	if obs.Prcp.Valid && obs.Prcp.Float64 < 0 {
		flags = append(flags, FlagPrecipNegative)
	}

	if obs.Snow.Valid && obs.Snow.Float64 < 0 {
		flags = append(flags, FlagSnowNegative)
	}

	if outside(obs.WDir.Valid, obs.WDir.Float64, 0, 360) {
		flags = append(flags, FlagWindDirInvalid)
	}

	if outside(obs.WSpd.Valid, obs.WSpd.Float64, 0, 400) || outside(obs.WPgt.Valid, obs.WPgt.Float64, 0, 500) {
		flags = append(flags, FlagWindSpeedUnlikely)
	}

	if outside(obs.Pres.Valid, obs.Pres.Float64, 850, 1090) {
		flags = append(flags, FlagPressureOutOfRange)
	}

	if outside(obs.TSun.Valid, obs.TSun.Float64, 0, 1440) {
		flags = append(flags, FlagSunshineInvalid)
	}

	return flags
}

func outside(valid bool, v, lo, hi float64) bool {
	return valid && (v < lo || v > hi)
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}

// Validate checks a freshly parsed table for one station. Rows must have
// unique dates; the result is sorted by date and every row carries
// stationID. Values behind a quality flag are nulled rather than kept.
func Validate(rows []models.DailyObservation, stationID string) ([]models.DailyObservation, error) {
	seen := make(map[time.Time]bool, len(rows))
	out := make([]models.DailyObservation, len(rows))
	flagged := 0

	for i, r := range rows {
		if r.Date.IsZero() {
			return nil, fmt.Errorf("%w: station %s: row %d has no date", ErrSchemaInvalid, stationID, i)
		}
		if seen[r.Date] {
			return nil, fmt.Errorf("%w: station %s: duplicate date %s", ErrSchemaInvalid, stationID, r.Date.Format("2006-01-02"))
		}
		seen[r.Date] = true

		r.StationID = stationID
		if flags := ValidateObservation(&r); len(flags) > 0 {
			flagged++
			log.Debugw("validate: dropping flagged values",
				"station", stationID, "date", r.Date.Format("2006-01-02"), "flags", QualityFlagsToJSON(flags))
			scrub(&r, flags)
		}
		out[i] = r
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	if flagged > 0 {
		log.Infow("validate: scrubbed implausible values", "station", stationID, "rows", flagged)
	}
	return out, nil
}

func scrub(obs *models.DailyObservation, flags []string) {
	var null sql.NullFloat64
	for _, f := range flags {
		switch f {
		case FlagTempOutOfRange, FlagTempOrder:
			obs.TAvg, obs.TMin, obs.TMax = null, null, null
		case FlagPrecipNegative:
			obs.Prcp = null
		case FlagSnowNegative:
			obs.Snow = null
		case FlagWindDirInvalid:
			obs.WDir = null
		case FlagWindSpeedUnlikely:
			obs.WSpd, obs.WPgt = null, null
		case FlagPressureOutOfRange:
			obs.Pres = null
		case FlagSunshineInvalid:
			obs.TSun = null
		}
	}
}
