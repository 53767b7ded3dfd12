package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/timeseries"
)

func writeTable(w io.Writer, format string, tbl *timeseries.Table) error {
	switch format {
	case "json":
		return timeseries.WriteJSON(w, tbl)
	case "csv", "":
		return timeseries.WriteCSV(w, tbl)
	}
	return fmt.Errorf("unknown format %q", format)
}

type stationRow struct {
	Station   string  `json:"station"`
	Distance  float64 `json:"distance"`
	Elevation float64 `json:"elevation"`
	Score     float64 `json:"score"`
}

func writeStations(w io.Writer, format string, metas []models.StationMeta) error {
	rows := make([]stationRow, len(metas))
	for i, m := range metas {
		rows[i] = stationRow{
			Station:   m.StationID,
			Distance:  m.Distance,
			Elevation: m.Elevation,
			Score:     m.Score,
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv", "":
		cw := csv.NewWriter(w)
		cw.Write([]string{"station", "distance", "elevation", "score"})
		for _, r := range rows {
			cw.Write([]string{
				r.Station,
				strconv.FormatFloat(r.Distance, 'f', 0, 64),
				strconv.FormatFloat(r.Elevation, 'f', -1, 64),
				strconv.FormatFloat(r.Score, 'f', 4, 64),
			})
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unknown format %q", format)
}
